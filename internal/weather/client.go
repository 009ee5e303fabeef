// Package weather queries OpenWeatherMap for current conditions and the
// daylight cloudiness outlook.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"boilertemp/internal/readings/types"
)

// Getter is the HTTP GET the client needs; *httpclient.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Options struct {
	BaseURL   string
	APIKey    string
	Latitude  float64
	Longitude float64
	// Location is the zone sunrise, sunset and the daylight window are read in.
	Location *time.Location
	// Horizon bounds which forecast entries count towards the average.
	Horizon time.Duration
}

type Client struct {
	getter Getter
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

func New(getter Getter, opts Options, logger *slog.Logger) *Client {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 72 * time.Hour
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{getter: getter, opts: opts, now: time.Now, logger: logger}
}

type currentResponse struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Sys *struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
}

// Current returns temperature, humidity, cloud cover and today's sunrise and
// sunset in the configured zone.
func (c *Client) Current(ctx context.Context) (types.CurrentConditions, error) {
	body, err := c.getter.Get(ctx, c.endpoint("weather"))
	if err != nil {
		return types.CurrentConditions{}, fmt.Errorf("current weather: %w", err)
	}
	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.CurrentConditions{}, fmt.Errorf("decode current weather: %w", err)
	}
	switch {
	case resp.Main == nil || resp.Main.Temp == nil || resp.Main.Humidity == nil:
		return types.CurrentConditions{}, fmt.Errorf("current weather: missing main.temp or main.humidity")
	case resp.Clouds == nil || resp.Clouds.All == nil:
		return types.CurrentConditions{}, fmt.Errorf("current weather: missing clouds.all")
	case resp.Sys == nil || resp.Sys.Sunrise == nil || resp.Sys.Sunset == nil:
		return types.CurrentConditions{}, fmt.Errorf("current weather: missing sys.sunrise or sys.sunset")
	}
	return types.CurrentConditions{
		Temp:       *resp.Main.Temp,
		Humidity:   *resp.Main.Humidity,
		Cloudiness: *resp.Clouds.All,
		Sunrise:    time.Unix(*resp.Sys.Sunrise, 0).In(c.opts.Location),
		Sunset:     time.Unix(*resp.Sys.Sunset, 0).In(c.opts.Location),
	}, nil
}

// ThreeDayCloudiness returns the average daylight cloud cover over the
// forecast horizon, or nil when no forecast entry falls in daylight.
func (c *Client) ThreeDayCloudiness(ctx context.Context) (*float64, error) {
	body, err := c.getter.Get(ctx, c.endpoint("forecast"))
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	var resp ForecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	if resp.City.Sunrise == 0 || resp.City.Sunset == 0 {
		return nil, fmt.Errorf("forecast: missing city.sunrise or city.sunset")
	}
	avg := AverageDaylightCloudiness(resp, c.now(), c.opts.Location, c.opts.Horizon)
	if avg == nil {
		c.logger.Info("no daylight forecast entries in horizon", "horizon", c.opts.Horizon, "entries", len(resp.List))
	}
	return avg, nil
}

// Fetch performs both calls. Either failing fails the whole fetch.
func (c *Client) Fetch(ctx context.Context) (types.Weather, error) {
	cur, err := c.Current(ctx)
	if err != nil {
		return types.Weather{}, err
	}
	avg, err := c.ThreeDayCloudiness(ctx)
	if err != nil {
		return types.Weather{}, err
	}
	return types.Weather{CurrentConditions: cur, ThreeDayForecastAvg: avg}, nil
}

func (c *Client) endpoint(path string) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.opts.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.opts.Longitude, 'f', -1, 64))
	q.Set("appid", c.opts.APIKey)
	q.Set("units", "metric")
	return c.opts.BaseURL + "/" + path + "?" + q.Encode()
}
