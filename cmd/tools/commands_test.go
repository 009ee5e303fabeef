package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"boilertemp/internal/analytics"
	"boilertemp/internal/migrate"
	"boilertemp/internal/readings/repository"
	"boilertemp/internal/readings/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRepo(t *testing.T) repository.ReadingsRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := migrate.Run(context.Background(), db, quietLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewRepository(db, time.UTC)
}

const legacyTable = "timestamp,temp_1,temp_2,temp_3,temp_4,temp_5,temp_6\n" +
	"2024-01-15 10:00:00,21.5,22,45,46.2,60.1,19.8\n" +
	"2024-01-15 10:02:00,21.6,22.1,45.2,46.1,60,19.9\n"

func TestImportTable_SkipsDuplicates(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	inserted, skipped, err := importTable(ctx, repo, strings.NewReader(legacyTable), time.UTC, quietLogger())
	if err != nil || inserted != 2 || skipped != 0 {
		t.Fatalf("first import = %d, %d, %v; want 2, 0, nil", inserted, skipped, err)
	}
	inserted, skipped, err = importTable(ctx, repo, strings.NewReader(legacyTable), time.UTC, quietLogger())
	if err != nil || inserted != 0 || skipped != 2 {
		t.Fatalf("second import = %d, %d, %v; want 0, 2, nil", inserted, skipped, err)
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Errorf("count = %d; want 2", n)
	}
}

func TestImportTable_BadInput(t *testing.T) {
	_, _, err := importTable(context.Background(), setupRepo(t), strings.NewReader("temp_1\n1\n"), time.UTC, quietLogger())
	if err == nil {
		t.Fatal("err = nil; want decode failure")
	}
}

func TestPrune(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{8 * 24 * time.Hour, 24 * time.Hour, time.Hour} {
		if err := repo.Insert(ctx, types.Reading{Timestamp: now.Add(-age)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := prune(ctx, repo, 7*24*time.Hour, now)
	if err != nil || n != 1 {
		t.Fatalf("prune = %d, %v; want 1, nil", n, err)
	}
	if _, err := prune(ctx, repo, 0, now); err == nil {
		t.Error("zero retention: err = nil")
	}
}

func TestExport(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	_ = repo.Insert(ctx, types.Reading{Timestamp: now.Add(-10 * 24 * time.Hour), Temperatures: types.Temperatures{1, 1, 1, 1, 1, 1}})
	_ = repo.Insert(ctx, types.Reading{Timestamp: now.Add(-time.Hour), Temperatures: types.Temperatures{21.5, 22, 45, 46.2, 60.1, 19.8}})

	var buf bytes.Buffer
	n, err := export(ctx, repo, &buf, analytics.RangeWeek, now, time.UTC)
	if err != nil || n != 1 {
		t.Fatalf("export = %d, %v; want 1, nil", n, err)
	}
	want := "timestamp,temp_1,temp_2,temp_3,temp_4,temp_5,temp_6\n" +
		"2024-06-10T11:00:00Z,21.5,22,45,46.2,60.1,19.8\n"
	if buf.String() != want {
		t.Errorf("export =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestRootCmd_ImportThenExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "boiler.db"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")

	csvPath := filepath.Join(dir, "temperature_data.csv")
	if err := os.WriteFile(csvPath, []byte(legacyTable), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		if err := execute(context.Background(), &toolEnv{}, args, &out); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	if got := run("migrate"); !strings.Contains(got, "migration(s) applied") {
		t.Errorf("migrate output = %q", got)
	}
	if got := run("import", csvPath); got != "2 reading(s) imported, 0 already present\n" {
		t.Errorf("import output = %q", got)
	}
	exported := filepath.Join(dir, "out.csv")
	run("export", "--range", "all", "--out", exported)

	b, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(string(b), "\n"); lines != 3 {
		t.Errorf("export has %d lines; want header plus 2 rows:\n%s", lines, b)
	}
}

func TestExecute_ClosesStoreWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "boiler.db"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "error")

	env := &toolEnv{}
	err := execute(context.Background(), env, []string{"import", filepath.Join(dir, "missing.csv")}, io.Discard)
	if err == nil {
		t.Fatal("err = nil; want open failure")
	}
	if env.db == nil {
		t.Fatal("store was never opened")
	}
	if err := env.db.Ping(); err == nil {
		t.Error("store still open after a failed command")
	}
}

func TestWriteFile(t *testing.T) {
	t.Run("writes content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		err := writeFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "timestamp\n")
			return err
		})
		if err != nil {
			t.Fatalf("writeFile: %v", err)
		}
		if b, _ := os.ReadFile(path); string(b) != "timestamp\n" {
			t.Errorf("content = %q", b)
		}
	})

	t.Run("write error wins", func(t *testing.T) {
		wantErr := errors.New("encode failed")
		err := writeFile(filepath.Join(t.TempDir(), "out.csv"), func(io.Writer) error { return wantErr })
		if !errors.Is(err, wantErr) {
			t.Errorf("err = %v; want %v", err, wantErr)
		}
	})

	t.Run("full device", func(t *testing.T) {
		if _, err := os.Stat("/dev/full"); err != nil {
			t.Skip("/dev/full not available")
		}
		err := writeFile("/dev/full", func(w io.Writer) error {
			_, err := io.WriteString(w, "timestamp\n")
			return err
		})
		if err == nil {
			t.Error("err = nil; want write failure on a full device")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		err := writeFile(filepath.Join(t.TempDir(), "nope", "out.csv"), func(io.Writer) error { return nil })
		if err == nil || !strings.Contains(err.Error(), "create") {
			t.Errorf("err = %v; want create failure", err)
		}
	})
}
