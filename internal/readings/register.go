package readings

import (
	"database/sql"
	"log/slog"
	"net/http"

	"boilertemp/internal/config"
	"boilertemp/internal/readings/controller"
	"boilertemp/internal/readings/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB, cfg config.Config, logger *slog.Logger) {
	readingsRepository := repository.NewRepository(db, cfg.Location)
	readingsController := controller.NewReadingsController(readingsRepository, controller.Options{
		Location:        cfg.Location,
		CollectInterval: cfg.CollectInterval,
		AlarmHighC:      cfg.AlarmHighC,
		AlarmLowC:       cfg.AlarmLowC,
	}, logger)
	readingsController.RegisterRoutes(mux)
}
