package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	// Europe/Athens must resolve on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// DefaultBoardURLs are the three sensor boards in mapping order (Board 1, Board 2, Board 3).
var DefaultBoardURLs = []string{
	"http://mirabella.gotdns.com:81/status.xml",
	"http://mirabella.gotdns.com:83/status.xml",
	"http://mirabella.gotdns.com:82/status.xml",
}

const (
	SimpleInterval  = 2 * time.Minute
	WeatherInterval = 5 * time.Minute
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration
	SQLiteLogSQL          bool

	// Location is the zone timestamps are normalized to (TIMEZONE, default Europe/Athens).
	Location *time.Location

	BoardURLs        []string
	HTTPTimeout      time.Duration
	HTTPRetryMax     int
	HTTPRetryBackoff time.Duration

	// CollectInterval is the sleep after each cycle. Zero on input picks the
	// variant default: 2m without weather, 5m with weather.
	CollectInterval time.Duration
	Retention       time.Duration

	WeatherEnabled     bool
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	Latitude           float64
	Longitude          float64
	ForecastHorizon    time.Duration

	AlarmHighC float64
	AlarmLowC  float64

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	KafkaBrokers []string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// MQTTEnabled reports whether an MQTT broker was configured.
func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c Config) InfluxEnabled() bool { return c.InfluxURL != "" }

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOr("HTTP_ADDR", ":8080")

	driver := envOr("DB_DRIVER", "sqlite3")
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	path := envOr("SQLITE_PATH", "data/boilertemp.db")

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logSQL, err := boolFromEnv("DB_LOG_SQL", false)
	if err != nil {
		return Config{}, err
	}

	tzName := envOr("TIMEZONE", "Europe/Athens")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	boardURLs := DefaultBoardURLs
	if s := strings.TrimSpace(os.Getenv("BOARD_URLS")); s != "" {
		boardURLs = splitList(s)
		if len(boardURLs) != len(DefaultBoardURLs) {
			return Config{}, fmt.Errorf("invalid BOARD_URLS %q: want %d urls, got %d", s, len(DefaultBoardURLs), len(boardURLs))
		}
	}

	httpTimeout, err := durationFromEnv("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	if httpTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", httpTimeout)
	}
	retryMax, err := intFromEnv("HTTP_RETRY_MAX", 3)
	if err != nil {
		return Config{}, err
	}
	if retryMax < 0 {
		return Config{}, fmt.Errorf("HTTP_RETRY_MAX must be >= 0, got %d", retryMax)
	}
	retryBackoff, err := durationFromEnv("HTTP_RETRY_BACKOFF", time.Second)
	if err != nil {
		return Config{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	weatherEnabled, err := boolFromEnv("WEATHER_ENABLED", apiKey != "")
	if err != nil {
		return Config{}, err
	}
	if weatherEnabled && apiKey == "" {
		return Config{}, fmt.Errorf("WEATHER_ENABLED is set but OPENWEATHER_API_KEY is empty")
	}

	interval, err := durationFromEnv("COLLECT_INTERVAL", 0)
	if err != nil {
		return Config{}, err
	}
	if interval < 0 {
		return Config{}, fmt.Errorf("COLLECT_INTERVAL must be positive, got %v", interval)
	}
	if interval == 0 {
		interval = SimpleInterval
		if weatherEnabled {
			interval = WeatherInterval
		}
	}

	retention, err := durationFromEnv("RETENTION", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	if retention <= 0 {
		return Config{}, fmt.Errorf("RETENTION must be positive, got %v", retention)
	}

	lat, err := floatFromEnv("WEATHER_LAT", 35.1907)
	if err != nil {
		return Config{}, err
	}
	lon, err := floatFromEnv("WEATHER_LON", 25.7164)
	if err != nil {
		return Config{}, err
	}
	horizon, err := durationFromEnv("FORECAST_HORIZON", 72*time.Hour)
	if err != nil {
		return Config{}, err
	}

	alarmHigh, err := floatFromEnv("ALARM_HIGH_C", 100)
	if err != nil {
		return Config{}, err
	}
	alarmLow, err := floatFromEnv("ALARM_LOW_C", 20)
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}

	var kafkaBrokers []string
	if s := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); s != "" {
		kafkaBrokers = splitList(s)
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		SQLiteDriver:          driver,
		SQLiteDSN:             dsn,
		SQLitePath:            path,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		SQLiteLogSQL:          logSQL,
		Location:              loc,
		BoardURLs:             boardURLs,
		HTTPTimeout:           httpTimeout,
		HTTPRetryMax:          retryMax,
		HTTPRetryBackoff:      retryBackoff,
		CollectInterval:       interval,
		Retention:             retention,
		WeatherEnabled:        weatherEnabled,
		OpenWeatherAPIKey:     apiKey,
		OpenWeatherBaseURL:    envOr("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		Latitude:              lat,
		Longitude:             lon,
		ForecastHorizon:       horizon,
		AlarmHighC:            alarmHigh,
		AlarmLowC:             alarmLow,
		MQTTBroker:            strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:              mqttPort,
		MQTTClientID:          envOr("MQTT_CLIENT_ID", "boilertemp"),
		MQTTTopic:             envOr("MQTT_TOPIC", "boilertemp/readings"),
		KafkaBrokers:          kafkaBrokers,
		KafkaTopic:            envOr("KAFKA_TOPIC", "boilertemp.readings"),
		InfluxURL:             strings.TrimSpace(os.Getenv("INFLUX_URL")),
		InfluxToken:           strings.TrimSpace(os.Getenv("INFLUX_TOKEN")),
		InfluxOrg:             strings.TrimSpace(os.Getenv("INFLUX_ORG")),
		InfluxBucket:          envOr("INFLUX_BUCKET", "boilertemp"),
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func floatFromEnv(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return f, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
