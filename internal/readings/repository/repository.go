package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"boilertemp/internal/readings/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/delete-older-than.sql
var deleteOlderThanSQL string

//go:embed sql/get-readings.sql
var getReadingsSQL string

//go:embed sql/get-latest-reading.sql
var getLatestReadingSQL string

//go:embed sql/get-latest-weather-reading.sql
var getLatestWeatherReadingSQL string

//go:embed sql/get-readings-count.sql
var getReadingsCountSQL string

// ErrNotFound is returned by the single-row getters on an empty table.
var ErrNotFound = errors.New("reading not found")

// ErrDuplicate is returned by Insert when a row with the same timestamp exists.
var ErrDuplicate = errors.New("reading already stored for timestamp")

type ReadingsRepository interface {
	Insert(ctx context.Context, r types.Reading) error
	// DeleteOlderThan removes rows strictly before cutoff and reports how many went.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// GetRange returns rows with from <= timestamp <= to, oldest first.
	GetRange(ctx context.Context, from, to time.Time) ([]types.Reading, error)
	GetLatest(ctx context.Context) (types.Reading, error)
	GetLatestWithWeather(ctx context.Context) (types.Reading, error)
	Count(ctx context.Context) (int, error)
}

type repositoryImpl struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository returns a repository whose reads are expressed in loc.
func NewRepository(db *sql.DB, loc *time.Location) ReadingsRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &repositoryImpl{db: db, loc: loc}
}

func (r *repositoryImpl) Insert(ctx context.Context, rd types.Reading) error {
	if rd.Timestamp.IsZero() {
		return fmt.Errorf("insert reading: timestamp is required")
	}
	ts := rd.Timestamp.In(r.loc)
	t := rd.Temperatures

	var curTemp, curHumidity, curCloudiness, sunrise, sunset, forecastAvg any
	if w := rd.Weather; w != nil {
		curTemp = w.Temp
		curHumidity = w.Humidity
		curCloudiness = w.Cloudiness
		sunrise = w.Sunrise.In(r.loc).Format(time.RFC3339)
		sunset = w.Sunset.In(r.loc).Format(time.RFC3339)
		if w.ThreeDayForecastAvg != nil {
			forecastAvg = *w.ThreeDayForecastAvg
		}
	}

	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		ts.UnixMilli(), ts.Format(time.RFC3339Nano),
		t[0], t[1], t[2], t[3], t[4], t[5],
		curTemp, curHumidity, curCloudiness,
		sunrise, sunset, forecastAvg,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("insert reading %s: %w", ts.Format(time.RFC3339), ErrDuplicate)
		}
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteOlderThanSQL, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete readings before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *repositoryImpl) GetRange(ctx context.Context, from, to time.Time) ([]types.Reading, error) {
	rows, err := r.db.QueryContext(ctx, getReadingsSQL, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close readings rows", "error", err)
		}
	}()

	var out []types.Reading
	for rows.Next() {
		rd, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetLatest(ctx context.Context) (types.Reading, error) {
	return r.getOne(ctx, getLatestReadingSQL)
}

func (r *repositoryImpl) GetLatestWithWeather(ctx context.Context) (types.Reading, error) {
	return r.getOne(ctx, getLatestWeatherReadingSQL)
}

func (r *repositoryImpl) getOne(ctx context.Context, query string) (types.Reading, error) {
	rd, err := r.scan(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reading{}, ErrNotFound
	}
	return rd, err
}

func (r *repositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, getReadingsCountSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *repositoryImpl) scan(s scanner) (types.Reading, error) {
	var rd types.Reading
	var ts string
	var curTemp, curHumidity, curCloudiness, forecastAvg sql.NullFloat64
	var sunrise, sunset sql.NullString
	t := &rd.Temperatures
	err := s.Scan(&ts, &t[0], &t[1], &t[2], &t[3], &t[4], &t[5],
		&curTemp, &curHumidity, &curCloudiness, &sunrise, &sunset, &forecastAvg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Reading{}, err
		}
		return types.Reading{}, fmt.Errorf("scan reading: %w", err)
	}

	at, err := parseTimestamp(ts)
	if err != nil {
		return types.Reading{}, err
	}
	rd.Timestamp = at.In(r.loc)

	if curTemp.Valid && curHumidity.Valid && curCloudiness.Valid && sunrise.Valid && sunset.Valid {
		rise, err := parseTimestamp(sunrise.String)
		if err != nil {
			return types.Reading{}, err
		}
		set, err := parseTimestamp(sunset.String)
		if err != nil {
			return types.Reading{}, err
		}
		w := &types.Weather{CurrentConditions: types.CurrentConditions{
			Temp:       curTemp.Float64,
			Humidity:   curHumidity.Float64,
			Cloudiness: curCloudiness.Float64,
			Sunrise:    rise.In(r.loc),
			Sunset:     set.In(r.loc),
		}}
		if forecastAvg.Valid {
			v := forecastAvg.Float64
			w.ThreeDayForecastAvg = &v
		}
		rd.Weather = w
	}
	return rd, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", s, err, err2)
		}
	}
	return t, nil
}
