package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"boilertemp/internal/config"
	"boilertemp/internal/db"
	"boilertemp/internal/logging"
)

const appName = "tools"

var version = "dev"

// toolEnv is what every subcommand works with, filled in before it runs.
type toolEnv struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
}

// execute runs one subcommand and closes the store whatever the outcome.
// Cobra skips post-run hooks when RunE fails, so the close lives here.
func execute(ctx context.Context, env *toolEnv, args []string, out io.Writer) error {
	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(out)
	err := root.ExecuteContext(ctx)
	if cerr := db.Close(env.db); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	return err
}

func newRootCmd(env *toolEnv) *cobra.Command {
	root := &cobra.Command{
		Use:           "boilertemp-tools",
		Short:         "Maintenance commands for the boiler temperature store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.logger = logging.New(cfg, version, appName)
			env.db, err = db.Open(cfg, env.logger)
			return err
		},
	}

	root.AddCommand(
		newMigrateCmd(env),
		newPruneCmd(env),
		newExportCmd(env),
		newImportCmd(env),
	)
	return root
}
