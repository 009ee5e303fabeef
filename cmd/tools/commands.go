package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"boilertemp/internal/analytics"
	"boilertemp/internal/migrate"
	"boilertemp/internal/readings/repository"
	"boilertemp/internal/readings/tablecsv"
)

func newMigrateCmd(env *toolEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := migrate.Run(cmd.Context(), env.db, env.logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", n)
			return nil
		},
	}
}

func newPruneCmd(env *toolEnv) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete readings older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("retention") {
				retention = env.cfg.Retention
			}
			repo := repository.NewRepository(env.db, env.cfg.Location)
			n, err := prune(cmd.Context(), repo, retention, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reading(s) deleted\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 7*24*time.Hour, "keep readings newer than this (defaults to RETENTION)")
	return cmd
}

func newExportCmd(env *toolEnv) *cobra.Command {
	var (
		out string
		rng string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored readings as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analytics.ParseRange(rng)
			if err != nil {
				return err
			}
			repo := repository.NewRepository(env.db, env.cfg.Location)
			var n int
			write := func(w io.Writer) (err error) {
				n, err = export(cmd.Context(), repo, w, r, time.Now(), env.cfg.Location)
				return err
			}
			if out == "" || out == "-" {
				err = write(cmd.OutOrStdout())
			} else {
				err = writeFile(out, write)
			}
			if err != nil {
				return err
			}
			env.logger.Info("export finished", "rows", n, "range", r, "out", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&rng, "range", "all", "week, 3d, today or all")
	return cmd
}

func newImportCmd(env *toolEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV table into the store, skipping rows already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			if _, err := migrate.Run(cmd.Context(), env.db, env.logger); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			repo := repository.NewRepository(env.db, env.cfg.Location)
			inserted, skipped, err := importTable(cmd.Context(), repo, f, env.cfg.Location, env.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reading(s) imported, %d already present\n", inserted, skipped)
			return nil
		},
	}
}

// writeFile creates path and hands it to write. A failed close is reported,
// since buffered data may only fail to reach the disk at that point.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func prune(ctx context.Context, repo repository.ReadingsRepository, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %v", retention)
	}
	n, err := repo.DeleteOlderThan(ctx, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return n, nil
}

func export(ctx context.Context, repo repository.ReadingsRepository, w io.Writer, r analytics.Range, now time.Time, loc *time.Location) (int, error) {
	from, to := r.Bounds(now, loc)
	rows, err := repo.GetRange(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load readings: %w", err)
	}
	if err := tablecsv.Encode(w, rows, loc); err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(rows), nil
}

func importTable(ctx context.Context, repo repository.ReadingsRepository, r io.Reader, loc *time.Location, logger *slog.Logger) (inserted, skipped int, err error) {
	rows, err := tablecsv.Decode(r, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("decode: %w", err)
	}
	for _, row := range rows {
		err := repo.Insert(ctx, row)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			skipped++
			logger.Debug("skipping stored reading", "timestamp", row.Timestamp)
		case err != nil:
			return inserted, skipped, fmt.Errorf("insert %s: %w", row.Timestamp.Format(time.RFC3339), err)
		default:
			inserted++
		}
	}
	return inserted, skipped, nil
}
