package types

import (
	"fmt"
	"time"
)

// Channels is the number of temperature channels: three boards with two each.
const Channels = 6

// Columns names the persisted temperature columns in channel order.
var Columns = [Channels]string{"temp_1", "temp_2", "temp_3", "temp_4", "temp_5", "temp_6"}

// RoomLabels are the rooms each channel's boiler serves.
var RoomLabels = [Channels]string{
	"Rooms 11-12",
	"Rooms 13-14",
	"Rooms 15-16",
	"Rooms 17-18",
	"Rooms 21-23",
	"Rooms 24-28",
}

// Temperatures holds temp_1..temp_6 in °C, index 0 being temp_1.
type Temperatures [Channels]float64

// Map returns the readings keyed by column name.
func (t Temperatures) Map() map[string]float64 {
	out := make(map[string]float64, Channels)
	for i, col := range Columns {
		out[col] = t[i]
	}
	return out
}

// ColumnIndex returns the channel index for a column name such as "temp_3".
func ColumnIndex(column string) (int, error) {
	for i, c := range Columns {
		if c == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown temperature column %q", column)
}

// CurrentConditions is the weather provider's view of the present moment.
type CurrentConditions struct {
	Temp       float64   `json:"current_temp"`
	Humidity   float64   `json:"current_humidity"`
	Cloudiness float64   `json:"current_cloudiness"`
	Sunrise    time.Time `json:"current_sunrise"`
	Sunset     time.Time `json:"current_sunset"`
}

// Weather is the optional weather part of a row.
type Weather struct {
	CurrentConditions
	// ThreeDayForecastAvg is nil when no forecast entry fell in daylight.
	ThreeDayForecastAvg *float64 `json:"three_day_forecast_avg"`
}

// Reading is one persisted row.
type Reading struct {
	Timestamp    time.Time    `json:"timestamp"`
	Temperatures Temperatures `json:"-"`
	Weather      *Weather     `json:"-"`
}

// In returns a copy with every instant converted to loc.
func (r Reading) In(loc *time.Location) Reading {
	r.Timestamp = r.Timestamp.In(loc)
	if r.Weather != nil {
		w := *r.Weather
		w.Sunrise = w.Sunrise.In(loc)
		w.Sunset = w.Sunset.In(loc)
		r.Weather = &w
	}
	return r
}
