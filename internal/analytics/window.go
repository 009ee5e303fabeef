// Package analytics computes the dashboard views over stored readings.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"boilertemp/internal/readings/types"
)

type Range string

const (
	RangeWeek  Range = "week"
	Range3Days Range = "3d"
	RangeToday Range = "today"
	RangeAll   Range = "all"
)

// ParseRange accepts week, 3d, today and all. Empty means week.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeWeek, nil
	case RangeWeek, Range3Days, RangeToday, RangeAll:
		return r, nil
	default:
		return "", fmt.Errorf("invalid range %q (allowed: week, 3d, today, all)", s)
	}
}

// Bounds returns the inclusive [from, to] interval the range covers at now.
// Today starts at local midnight in loc.
func (r Range) Bounds(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	switch r {
	case Range3Days:
		return now.Add(-3 * 24 * time.Hour), now
	case RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), now
	case RangeAll:
		return time.Unix(0, 0).In(loc), now
	default:
		return now.Add(-7 * 24 * time.Hour), now
	}
}

// Filter keeps rows inside the range.
func Filter(rows []types.Reading, r Range, now time.Time, loc *time.Location) []types.Reading {
	from, to := r.Bounds(now, loc)
	var out []types.Reading
	for _, rd := range rows {
		if rd.Timestamp.Before(from) || rd.Timestamp.After(to) {
			continue
		}
		out = append(out, rd)
	}
	return out
}
