package controller

import (
	"log/slog"
	"net/http"
	"time"

	"boilertemp/internal/readings/repository"
)

type ReadingsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Options carries the settings the read views depend on.
type Options struct {
	Location        *time.Location
	CollectInterval time.Duration
	AlarmHighC      float64
	AlarmLowC       float64
}

type readingsControllerImpl struct {
	repository repository.ReadingsRepository
	opts       Options
	now        func() time.Time
	logger     *slog.Logger
}

func NewReadingsController(repo repository.ReadingsRepository, opts Options, logger *slog.Logger) ReadingsController {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &readingsControllerImpl{
		repository: repo,
		opts:       opts,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "readings-api")),
	}
}

func (c *readingsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/readings", c.handleReadings)
	mux.HandleFunc("GET /api/v1/readings/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/alarms", c.handleAlarms)
	mux.HandleFunc("GET /api/v1/forecast", c.handleForecast)
	mux.HandleFunc("GET /api/v1/correlations", c.handleCorrelations)
	mux.HandleFunc("GET /api/v1/sunlight", c.handleSunlight)
	mux.HandleFunc("GET /api/v1/export.csv", c.handleExport)
}
