package publish

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"boilertemp/internal/readings/types"
)

const influxMeasurement = "boiler_temperature"

// Influx writes each reading as one point with the temperatures and weather
// as fields.
type Influx struct {
	client influxdb2.Client
	write  pointWriter
	logger *slog.Logger
}

// pointWriter is the part of api.WriteAPIBlocking used here.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

var _ pointWriter = api.WriteAPIBlocking(nil)

func NewInflux(url, token, org, bucket string, logger *slog.Logger) *Influx {
	client := influxdb2.NewClient(url, token)
	return &Influx{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
		logger: logger.With(slog.String("component", "influx-publisher")),
	}
}

func (i *Influx) Publish(ctx context.Context, r types.Reading) error {
	if err := i.write.WritePoint(ctx, Point(r)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	i.logger.Debug("published reading", "timestamp", r.Timestamp)
	return nil
}

// Close releases the client. A nil client is allowed for tests.
func (i *Influx) Close() {
	if i.client != nil {
		i.client.Close()
	}
}

// Point maps a reading to the boiler_temperature measurement.
func Point(r types.Reading) *write.Point {
	p := influxdb2.NewPointWithMeasurement(influxMeasurement).SetTime(r.Timestamp)
	for col, v := range r.Temperatures.Map() {
		p.AddField(col, v)
	}
	if w := r.Weather; w != nil {
		p.AddField("current_temp", w.Temp).
			AddField("current_humidity", w.Humidity).
			AddField("current_cloudiness", w.Cloudiness)
		if w.ThreeDayForecastAvg != nil {
			p.AddField("three_day_forecast_avg", *w.ThreeDayForecastAvg)
		}
	}
	return p
}
