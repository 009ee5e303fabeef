package analytics

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"boilertemp/internal/readings/types"
)

// Alarm flags a channel whose extreme value crossed a threshold in the window.
type Alarm struct {
	Column    string  `json:"column"`
	Room      string  `json:"room"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value_c"`
	Threshold float64 `json:"threshold_c"`
}

func (a Alarm) String() string {
	if a.Kind == "high" {
		return fmt.Sprintf("Alarm for %s, temperature exceeds %g°C", a.Room, a.Threshold)
	}
	return fmt.Sprintf("Alarm for %s, temperature falls below %g°C", a.Room, a.Threshold)
}

// Alarms reports, per channel, a high alarm when the maximum exceeds high and
// a low alarm when the minimum is below low.
func Alarms(rows []types.Reading, high, low float64) []Alarm {
	if len(rows) == 0 {
		return nil
	}
	var out []Alarm
	for ch := range types.Channels {
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, r := range rows {
			minV = math.Min(minV, r.Temperatures[ch])
			maxV = math.Max(maxV, r.Temperatures[ch])
		}
		if maxV > high {
			out = append(out, Alarm{Column: types.Columns[ch], Room: types.RoomLabels[ch], Kind: "high", Value: maxV, Threshold: high})
		}
		if minV < low {
			out = append(out, Alarm{Column: types.Columns[ch], Room: types.RoomLabels[ch], Kind: "low", Value: minV, Threshold: low})
		}
	}
	return out
}

// SeasonalDays is how many trailing days the seasonal forecast averages.
const SeasonalDays = 5

var ErrNotEnoughData = errors.New("not enough data for a 5-day seasonal forecast")

// SeasonalForecast averages the last SeasonalDays windows of pointsPerDay
// samples position by position, giving one forecast day.
func SeasonalForecast(series []float64, pointsPerDay int) ([]float64, error) {
	if pointsPerDay <= 0 {
		return nil, fmt.Errorf("points per day must be positive, got %d", pointsPerDay)
	}
	if len(series) < SeasonalDays*pointsPerDay {
		return nil, fmt.Errorf("%w: have %d samples, need %d", ErrNotEnoughData, len(series), SeasonalDays*pointsPerDay)
	}
	recent := series[len(series)-SeasonalDays*pointsPerDay:]
	out := make([]float64, pointsPerDay)
	for day := range SeasonalDays {
		for i, v := range recent[day*pointsPerDay : (day+1)*pointsPerDay] {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= SeasonalDays
	}
	return out, nil
}

// PointsPerDay is how many samples one day holds at the given interval.
func PointsPerDay(interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(24 * time.Hour / interval)
}

// EstimateInterval returns the median spacing between consecutive rows,
// rounded to the minute (to the second below one minute). It returns 0 when
// fewer than two rows are ordered in time.
func EstimateInterval(rows []types.Reading) time.Duration {
	var gaps []time.Duration
	for i := 1; i < len(rows); i++ {
		if d := rows[i].Timestamp.Sub(rows[i-1].Timestamp); d > 0 {
			gaps = append(gaps, d)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	slices.Sort(gaps)
	d := gaps[len(gaps)/2]
	if d >= time.Minute {
		return d.Round(time.Minute)
	}
	return d.Round(time.Second)
}

// ForecastPoint is one forecast instant with a value per channel.
type ForecastPoint struct {
	Timestamp    time.Time          `json:"timestamp"`
	Temperatures map[string]float64 `json:"temperatures"`
}

// Forecast builds the next day of every channel, stepping by interval from the
// last row's timestamp.
func Forecast(rows []types.Reading, interval time.Duration) ([]ForecastPoint, error) {
	ppd := PointsPerDay(interval)
	var perChannel [types.Channels][]float64
	for ch := range types.Channels {
		series := make([]float64, len(rows))
		for i, r := range rows {
			series[i] = r.Temperatures[ch]
		}
		f, err := SeasonalForecast(series, ppd)
		if err != nil {
			return nil, err
		}
		perChannel[ch] = f
	}

	last := rows[len(rows)-1].Timestamp
	out := make([]ForecastPoint, ppd)
	for i := range out {
		temps := make(map[string]float64, types.Channels)
		for ch, col := range types.Columns {
			temps[col] = perChannel[ch][i]
		}
		out[i] = ForecastPoint{Timestamp: last.Add(time.Duration(i+1) * interval), Temperatures: temps}
	}
	return out, nil
}

type Against string

const (
	AgainstCloudiness Against = "cloudiness"
	AgainstExterior   Against = "exterior"
)

func ParseAgainst(s string) (Against, error) {
	switch a := Against(s); a {
	case "", AgainstCloudiness:
		return AgainstCloudiness, nil
	case AgainstExterior:
		return a, nil
	default:
		return "", fmt.Errorf("invalid against %q (allowed: cloudiness, exterior)", s)
	}
}

// Correlation is one channel's Pearson coefficient; nil when undefined.
type Correlation struct {
	Column      string   `json:"column"`
	Room        string   `json:"room"`
	Coefficient *float64 `json:"coefficient"`
}

// Correlations relates each channel to current_cloudiness or current_temp,
// using only rows that carry weather.
func Correlations(rows []types.Reading, against Against) []Correlation {
	var xs [types.Channels][]float64
	var ys []float64
	for _, r := range rows {
		if r.Weather == nil {
			continue
		}
		y := r.Weather.Cloudiness
		if against == AgainstExterior {
			y = r.Weather.Temp
		}
		ys = append(ys, y)
		for ch := range types.Channels {
			xs[ch] = append(xs[ch], r.Temperatures[ch])
		}
	}

	out := make([]Correlation, types.Channels)
	for ch := range types.Channels {
		out[ch] = Correlation{Column: types.Columns[ch], Room: types.RoomLabels[ch], Coefficient: Pearson(xs[ch], ys)}
	}
	return out
}

// Pearson returns the correlation coefficient of two equal-length samples, or
// nil for fewer than two points or zero variance.
func Pearson(x, y []float64) *float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return nil
	}
	var mx, my float64
	for i := range n {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range n {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}
	r := sxy / math.Sqrt(sxx*syy)
	return &r
}

// SunlightRemaining is the share of today's daylight still ahead, in percent
// rounded to two decimals: 100 before sunrise and 0 after sunset.
func SunlightRemaining(sunrise, sunset, now time.Time) float64 {
	switch {
	case now.Before(sunrise):
		return 100
	case now.After(sunset):
		return 0
	}
	total := sunset.Sub(sunrise).Seconds()
	if total <= 0 {
		return 0
	}
	pct := 100 * (total - now.Sub(sunrise).Seconds()) / total
	pct = math.Max(0, math.Min(100, pct))
	return math.Round(pct*100) / 100
}
