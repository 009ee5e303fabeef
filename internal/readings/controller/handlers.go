package controller

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"boilertemp/internal/analytics"
	"boilertemp/internal/readings/repository"
	"boilertemp/internal/readings/tablecsv"
	"boilertemp/internal/readings/types"
	"boilertemp/internal/utils"
)

type readingsResponse struct {
	Range    analytics.Range `json:"range"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Count    int             `json:"count"`
	Readings []types.Reading `json:"readings"`
}

type alarmsResponse struct {
	Range    analytics.Range   `json:"range"`
	HighC    float64           `json:"high_c"`
	LowC     float64           `json:"low_c"`
	Alarms   []analytics.Alarm `json:"alarms"`
	Messages []string          `json:"messages"`
}

type forecastResponse struct {
	PointsPerDay int                       `json:"points_per_day"`
	Points       []analytics.ForecastPoint `json:"points"`
}

type correlationsResponse struct {
	Range        analytics.Range         `json:"range"`
	Against      analytics.Against       `json:"against"`
	Samples      int                     `json:"samples"`
	Correlations []analytics.Correlation `json:"correlations"`
}

type sunlightResponse struct {
	Timestamp           time.Time `json:"timestamp"`
	Sunrise             time.Time `json:"sunrise"`
	Sunset              time.Time `json:"sunset"`
	RemainingPct        float64   `json:"remaining_pct"`
	Cloudiness          float64   `json:"current_cloudiness"`
	ThreeDayForecastAvg *float64  `json:"three_day_forecast_avg"`
}

// window loads the rows the range covers at the current instant.
func (c *readingsControllerImpl) window(ctx context.Context, rng analytics.Range) (from, to time.Time, rows []types.Reading, err error) {
	from, to = rng.Bounds(c.now(), c.opts.Location)
	rows, err = c.repository.GetRange(ctx, from, to)
	return from, to, rows, err
}

func (c *readingsControllerImpl) handleReadings(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, rows, err := c.window(r.Context(), rng)
	if err != nil {
		c.logger.Error("readings: get range failed", "range", rng, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	if rows == nil {
		rows = []types.Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readingsResponse{Range: rng, From: from, To: to, Count: len(rows), Readings: rows})
}

func (c *readingsControllerImpl) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := c.repository.GetLatest(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "no readings stored yet")
		return
	}
	if err != nil {
		c.logger.Error("latest: get latest failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *readingsControllerImpl) handleAlarms(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, _, rows, err := c.window(r.Context(), rng)
	if err != nil {
		c.logger.Error("alarms: get range failed", "range", rng, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	alarms := analytics.Alarms(rows, c.opts.AlarmHighC, c.opts.AlarmLowC)
	resp := alarmsResponse{
		Range:    rng,
		HighC:    c.opts.AlarmHighC,
		LowC:     c.opts.AlarmLowC,
		Alarms:   make([]analytics.Alarm, 0, len(alarms)),
		Messages: make([]string, 0, len(alarms)),
	}
	for _, a := range alarms {
		resp.Alarms = append(resp.Alarms, a)
		resp.Messages = append(resp.Messages, a.String())
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *readingsControllerImpl) handleForecast(w http.ResponseWriter, r *http.Request) {
	_, _, rows, err := c.window(r.Context(), analytics.RangeWeek)
	if err != nil {
		c.logger.Error("forecast: get range failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	// The collector may run with a different interval than this process is
	// configured with; the stored spacing is what the day windows must match.
	interval := analytics.EstimateInterval(rows)
	if interval <= 0 {
		interval = c.opts.CollectInterval
	}
	points, err := analytics.Forecast(rows, interval)
	if errors.Is(err, analytics.ErrNotEnoughData) {
		utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		c.logger.Error("forecast: compute failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to compute forecast")
		return
	}
	utils.WriteJSON(w, http.StatusOK, forecastResponse{PointsPerDay: len(points), Points: points})
}

func (c *readingsControllerImpl) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	rng, against, err := parseCorrelationsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, _, rows, err := c.window(r.Context(), rng)
	if err != nil {
		c.logger.Error("correlations: get range failed", "range", rng, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	samples := 0
	for _, row := range rows {
		if row.Weather != nil {
			samples++
		}
	}
	utils.WriteJSON(w, http.StatusOK, correlationsResponse{
		Range:        rng,
		Against:      against,
		Samples:      samples,
		Correlations: analytics.Correlations(rows, against),
	})
}

func (c *readingsControllerImpl) handleSunlight(w http.ResponseWriter, r *http.Request) {
	latest, err := c.repository.GetLatestWithWeather(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "no weather data stored yet")
		return
	}
	if err != nil {
		c.logger.Error("sunlight: get latest weather failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}

	wx := latest.Weather
	utils.WriteJSON(w, http.StatusOK, sunlightResponse{
		Timestamp:           latest.Timestamp,
		Sunrise:             wx.Sunrise,
		Sunset:              wx.Sunset,
		RemainingPct:        analytics.SunlightRemaining(wx.Sunrise, wx.Sunset, c.now()),
		Cloudiness:          wx.Cloudiness,
		ThreeDayForecastAvg: wx.ThreeDayForecastAvg,
	})
}

func (c *readingsControllerImpl) handleExport(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, _, rows, err := c.window(r.Context(), rng)
	if err != nil {
		c.logger.Error("export: get range failed", "range", rng, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	var buf bytes.Buffer
	if err := tablecsv.Encode(&buf, rows, c.opts.Location); err != nil {
		c.logger.Error("export: encode failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to encode readings")
		return
	}
	utils.SetAttachment(w, "text/csv; charset=utf-8", exportFilename)
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Error("export: write response failed", "error", err)
	}
}
