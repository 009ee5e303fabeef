package app

import (
	"context"
	"log/slog"
	"time"

	"boilertemp/internal/collector"
	"boilertemp/internal/config"
	"boilertemp/internal/db"
	"boilertemp/internal/httpclient"
	"boilertemp/internal/mqtt"
	"boilertemp/internal/publish"
	"boilertemp/internal/readings/repository"
	"boilertemp/internal/sensors"
	"boilertemp/internal/weather"
)

// RunCollector runs the collection loop until ctx is cancelled.
func RunCollector(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"sqlitePath", cfg.SQLitePath,
		"timezone", cfg.Location.String(),
		"boards", cfg.BoardURLs,
		"interval", cfg.CollectInterval,
		"retention", cfg.Retention,
		"weatherEnabled", cfg.WeatherEnabled,
		"mqttEnabled", cfg.MQTTEnabled(),
		"kafkaEnabled", cfg.KafkaEnabled(),
		"influxEnabled", cfg.InfluxEnabled(),
	)

	boards, err := sensors.Boards(cfg.BoardURLs)
	if err != nil {
		return err
	}

	dbConn, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	client := httpclient.New(nil, cfg.HTTPTimeout, retryPolicy(cfg), logger)
	opts := collector.Options{
		Interval:  cfg.CollectInterval,
		Retention: cfg.Retention,
		Location:  cfg.Location,
	}
	if cfg.WeatherEnabled {
		opts.Weather = weather.New(client, weather.Options{
			BaseURL:   cfg.OpenWeatherBaseURL,
			APIKey:    cfg.OpenWeatherAPIKey,
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			Location:  cfg.Location,
			Horizon:   cfg.ForecastHorizon,
		}, logger)
	}

	sinks, closeSinks := buildPublishers(ctx, cfg, logger)
	defer closeSinks()
	if len(sinks) > 0 {
		opts.Publisher = sinks
	}

	repo := repository.NewRepository(dbConn, cfg.Location)
	return collector.New(sensors.NewFetcher(client, boards, logger), repo, opts, logger).Run(ctx)
}

// retryPolicy keeps the default retryable statuses and applies the configured
// retry count and backoff.
func retryPolicy(cfg config.Config) httpclient.RetryPolicy {
	p := httpclient.DefaultRetryPolicy()
	p.MaxRetries = cfg.HTTPRetryMax
	if cfg.HTTPRetryBackoff > 0 {
		p.BackoffFactor = cfg.HTTPRetryBackoff
	}
	return p
}

// buildPublishers creates every configured sink. An MQTT broker that is
// unreachable at startup is skipped for the life of the process.
func buildPublishers(ctx context.Context, cfg config.Config, logger *slog.Logger) (publish.Multi, func()) {
	var (
		sinks   publish.Multi
		closers []func()
	)

	if cfg.MQTTEnabled() {
		p := mqtt.NewPublisher(cfg, logger)
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			p.Disconnect()
		} else {
			sinks = append(sinks, publish.Named{Name: "mqtt", Publisher: p})
			closers = append(closers, p.Disconnect)
		}
	}
	if cfg.KafkaEnabled() {
		k := publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, publish.Named{Name: "kafka", Publisher: k})
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				logger.Error("kafka writer close", "error", err)
			}
		})
	}
	if cfg.InfluxEnabled() {
		i := publish.NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger)
		sinks = append(sinks, publish.Named{Name: "influx", Publisher: i})
		closers = append(closers, i.Close)
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
