// Package tablecsv reads and writes the readings table as comma-separated text:
// a header row followed by one row per reading.
package tablecsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"boilertemp/internal/readings/types"
)

// WeatherColumns follow the temperature columns when any row carries weather.
var WeatherColumns = []string{
	"current_temp",
	"current_humidity",
	"current_cloudiness",
	"current_sunrise",
	"current_sunset",
	"three_day_forecast_avg",
}

// Header returns the column list for a table with or without weather.
func Header(withWeather bool) []string {
	h := append([]string{"timestamp"}, types.Columns[:]...)
	if withWeather {
		h = append(h, WeatherColumns...)
	}
	return h
}

// Encode writes rows with timestamps rendered in loc. Weather columns are
// included only when at least one row carries weather; rows without it get
// empty cells.
func Encode(w io.Writer, rows []types.Reading, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	withWeather := false
	for _, r := range rows {
		if r.Weather != nil {
			withWeather = true
			break
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(withWeather)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		rec := make([]string, 0, 1+types.Channels+len(WeatherColumns))
		rec = append(rec, r.Timestamp.In(loc).Format(time.RFC3339Nano))
		for _, v := range r.Temperatures {
			rec = append(rec, formatFloat(v))
		}
		if withWeather {
			rec = append(rec, weatherCells(r.Weather, loc)...)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s: %w", rec[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func weatherCells(w *types.Weather, loc *time.Location) []string {
	cells := make([]string, len(WeatherColumns))
	if w == nil {
		return cells
	}
	cells[0] = formatFloat(w.Temp)
	cells[1] = formatFloat(w.Humidity)
	cells[2] = formatFloat(w.Cloudiness)
	cells[3] = w.Sunrise.In(loc).Format(time.RFC3339)
	cells[4] = w.Sunset.In(loc).Format(time.RFC3339)
	if w.ThreeDayForecastAvg != nil {
		cells[5] = formatFloat(*w.ThreeDayForecastAvg)
	}
	return cells
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Decode reads a table written by Encode or by earlier collector versions.
// Columns are matched by header name, so their order does not matter.
// Timestamps without an offset are read in loc.
func Decode(r io.Reader, loc *time.Location) ([]types.Reading, error) {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range Header(false) {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("header: missing column %q", col)
		}
	}

	var out []types.Reading
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cell := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		rd, err := decodeRow(cell, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rd)
	}
	return out, nil
}

func decodeRow(cell func(string) string, loc *time.Location) (types.Reading, error) {
	var rd types.Reading
	ts, err := ParseTimestamp(cell("timestamp"), loc)
	if err != nil {
		return rd, err
	}
	rd.Timestamp = ts
	for i, col := range types.Columns {
		v, err := strconv.ParseFloat(cell(col), 64)
		if err != nil {
			return rd, fmt.Errorf("invalid %s %q: %w", col, cell(col), err)
		}
		rd.Temperatures[i] = v
	}

	for _, col := range WeatherColumns[:5] {
		if cell(col) == "" {
			return rd, nil
		}
	}
	w := &types.Weather{}
	for col, dst := range map[string]*float64{
		"current_temp":       &w.Temp,
		"current_humidity":   &w.Humidity,
		"current_cloudiness": &w.Cloudiness,
	} {
		if *dst, err = strconv.ParseFloat(cell(col), 64); err != nil {
			return rd, fmt.Errorf("invalid %s %q: %w", col, cell(col), err)
		}
	}
	if w.Sunrise, err = ParseTimestamp(cell("current_sunrise"), loc); err != nil {
		return rd, err
	}
	if w.Sunset, err = ParseTimestamp(cell("current_sunset"), loc); err != nil {
		return rd, err
	}
	if s := cell("three_day_forecast_avg"); s != "" && !strings.EqualFold(s, "nan") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return rd, fmt.Errorf("invalid three_day_forecast_avg %q: %w", s, err)
		}
		w.ThreeDayForecastAvg = &v
	}
	rd.Weather = w
	return rd, nil
}

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts ISO-8601 with or without an offset, using either
// "T" or a space between date and time. The result is expressed in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
