// Package httpclient is the retrying HTTP GET client shared by the board and
// weather fetchers.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 120 * time.Second

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 4 << 20

// RetryPolicy decides which failures are retried and how long to wait.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BackoffFactor scales the delay: the first retry is immediate, retry n
	// waits BackoffFactor * 2^(n-1).
	BackoffFactor time.Duration
	// RetryStatuses are response codes treated as transient.
	RetryStatuses []int
}

// DefaultRetryPolicy retries three times on 429/500/502/503/504 and transport errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BackoffFactor: time.Second,
		RetryStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// StatusError reports a non-2xx response that was not (or no longer) retried.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client issues GET requests with a per-request timeout and a retry policy.
type Client struct {
	http   *http.Client
	policy RetryPolicy
	logger *slog.Logger
}

// New returns a Client. A nil httpClient gets a fresh *http.Client with timeout.
func New(httpClient *http.Client, timeout time.Duration, policy RetryPolicy, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout > 0 {
		httpClient.Timeout = timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, policy: policy, logger: logger}
}

// Get fetches url and returns the response body of the first 2xx answer.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	var body []byte

	op := func() error {
		attempt++
		b, err := c.getOnce(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("http get failed, retrying",
			"url", url,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(newDoublingBackOff(c.policy.BackoffFactor), uint64(max(c.policy.MaxRetries, 0))),
		ctx,
	)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("get %s: %w (%w)", url, ctxErr, err)
		}
		return nil, fmt.Errorf("get %s after %d attempt(s): %w", url, attempt, err)
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		// Connection refused/reset and timeouts.
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
		if slices.Contains(c.policy.RetryStatuses, resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// doublingBackOff waits nothing before the first retry, then factor*2^(n-1)
// for retry n, capped at maxBackoff.
type doublingBackOff struct {
	factor  time.Duration
	retries int
}

func newDoublingBackOff(factor time.Duration) *doublingBackOff {
	return &doublingBackOff{factor: factor}
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	b.retries++
	if b.retries <= 1 || b.factor <= 0 {
		return 0
	}
	d := b.factor << (b.retries - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (b *doublingBackOff) Reset() { b.retries = 0 }
