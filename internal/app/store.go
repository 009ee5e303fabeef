package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"boilertemp/internal/config"
	"boilertemp/internal/db"
	"boilertemp/internal/migrate"
)

// openStore opens the SQLite database, applies pending migrations and checks
// the connection.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}
	if ok != 1 {
		_ = db.Close(dbConn)
		return nil, errors.New("database connection failed")
	}
	logger.Info("database connection successful")
	return dbConn, nil
}
