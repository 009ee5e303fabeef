package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy keeps the default retry rules without sleeping between attempts.
func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.BackoffFactor = 0
	return p
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<status/>")
	}))
	defer srv.Close()

	c := New(nil, time.Second, fastPolicy(), quietLogger())
	body, err := c.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "<status/>" {
		t.Errorf("body = %q", body)
	}
}

func TestGet_RetriesTransientStatuses(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= 2 {
					w.WriteHeader(code)
					return
				}
				_, _ = io.WriteString(w, "ok")
			}))
			defer srv.Close()

			c := New(nil, time.Second, fastPolicy(), quietLogger())
			body, err := c.Get(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(body) != "ok" {
				t.Errorf("body = %q, want ok", body)
			}
			if got := calls.Load(); got != 3 {
				t.Errorf("calls = %d, want 3", got)
			}
		})
	}
}

func TestGet_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(nil, time.Second, fastPolicy(), quietLogger())
	_, err := c.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("Get error = nil, want non-nil")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v; want StatusError 503", err)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("calls = %d, want 4 (1 + 3 retries)", got)
	}
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(nil, time.Second, fastPolicy(), quietLogger())
	_, err := c.Get(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v; want StatusError 404", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGet_RetriesConnectionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(nil, time.Second, fastPolicy(), quietLogger())
	_, err := c.Get(context.Background(), url)
	if err == nil {
		t.Fatal("Get error = nil, want non-nil for closed server")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("err = %v; want transport error, not status", err)
	}
}

func TestGet_TimeoutIsRetriedThenFails(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	policy := fastPolicy()
	policy.MaxRetries = 1
	c := New(nil, 50*time.Millisecond, policy, quietLogger())
	if _, err := c.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("Get error = nil, want timeout")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestGet_ContextCancelStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	policy := DefaultRetryPolicy()
	policy.BackoffFactor = time.Hour
	c := New(nil, time.Second, policy, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Get(ctx, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Get kept waiting after the context expired")
	}
	// First retry is immediate, the second would wait two hours.
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDoublingBackOff_Schedule(t *testing.T) {
	b := newDoublingBackOff(time.Second)
	want := []time.Duration{0, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 64 * time.Second, maxBackoff, maxBackoff}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("retry %d: wait %v, want %v", i+1, got, w)
		}
	}
	b.Reset()
	if got := b.NextBackOff(); got != 0 {
		t.Errorf("after Reset: wait %v, want 0", got)
	}
}

func TestDoublingBackOff_ZeroFactor(t *testing.T) {
	b := newDoublingBackOff(0)
	for i := 0; i < 4; i++ {
		if got := b.NextBackOff(); got != 0 {
			t.Errorf("retry %d: wait %v, want 0", i+1, got)
		}
	}
}
