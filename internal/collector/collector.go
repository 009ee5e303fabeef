// Package collector runs the fetch, persist and prune cycle.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"boilertemp/internal/readings/types"
)

type TemperatureSource interface {
	FetchTemperatures(ctx context.Context) (types.Temperatures, error)
}

type WeatherSource interface {
	Fetch(ctx context.Context) (types.Weather, error)
}

type Store interface {
	Insert(ctx context.Context, r types.Reading) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, r types.Reading) error
}

type Options struct {
	// Weather is optional; nil runs the simple variant.
	Weather WeatherSource
	// Publisher is optional and receives every stored row.
	Publisher Publisher
	Interval  time.Duration
	Retention time.Duration
	Location  *time.Location
}

type Collector struct {
	sensors TemperatureSource
	store   Store
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
}

func New(sensors TemperatureSource, store Store, opts Options, logger *slog.Logger) *Collector {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{sensors: sensors, store: store, opts: opts, now: time.Now, logger: logger}
}

// Run executes a cycle immediately and then one more after every interval of
// idle time, until ctx is cancelled. A failed cycle is logged and does not end
// the loop.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Info("collector started",
		"interval", c.opts.Interval,
		"retention", c.opts.Retention,
		"weather", c.opts.Weather != nil,
	)
	for {
		// Failures are logged by Cycle with its cycle_id.
		_, _ = c.Cycle(ctx)

		timer := time.NewTimer(c.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("collector stopping")
			return nil
		case <-timer.C:
		}
	}
}

// Cycle fetches all sources, stores one row and prunes. Nothing is stored when
// any fetch fails. A failed cycle is logged with the same cycle_id as its
// other records.
func (c *Collector) Cycle(ctx context.Context) (types.Reading, error) {
	log := c.logger.With("cycle_id", uuid.NewString())
	row, err := c.cycle(ctx, log)
	if err != nil && ctx.Err() == nil {
		log.Error("collection cycle failed", "error", err)
	}
	return row, err
}

func (c *Collector) cycle(ctx context.Context, log *slog.Logger) (types.Reading, error) {
	start := c.now()

	temps, err := c.sensors.FetchTemperatures(ctx)
	if err != nil {
		return types.Reading{}, fmt.Errorf("fetch temperatures: %w", err)
	}

	var weather *types.Weather
	if c.opts.Weather != nil {
		w, err := c.opts.Weather.Fetch(ctx)
		if err != nil {
			return types.Reading{}, fmt.Errorf("fetch weather: %w", err)
		}
		weather = &w
	}

	// The store keys rows by Unix milliseconds; finer precision would let a row
	// sit just past the retention cutoff.
	at := c.now().Truncate(time.Millisecond).In(c.opts.Location)
	row := types.Reading{Timestamp: at, Temperatures: temps, Weather: weather}
	if err := c.store.Insert(ctx, row); err != nil {
		return types.Reading{}, fmt.Errorf("persist reading: %w", err)
	}

	cutoff := at.Add(-c.opts.Retention)
	pruned, err := c.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		// The row is stored; the next cycle prunes again.
		log.Error("prune failed", "cutoff", cutoff, "error", err)
	}

	if c.opts.Publisher != nil {
		if err := c.opts.Publisher.Publish(ctx, row); err != nil {
			log.Warn("publish failed", "error", err)
		}
	}

	attrs := []any{
		"timestamp", at.Format(time.RFC3339),
		"pruned", pruned,
		"took", c.now().Sub(start),
	}
	for i, col := range types.Columns {
		attrs = append(attrs, col, temps[i])
	}
	if weather != nil {
		attrs = append(attrs, "current_cloudiness", weather.Cloudiness)
		if weather.ThreeDayForecastAvg != nil {
			attrs = append(attrs, "three_day_forecast_avg", *weather.ThreeDayForecastAvg)
		}
	}
	log.Info("reading stored", attrs...)
	return row, nil
}
