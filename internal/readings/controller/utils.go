package controller

import (
	"errors"
	"net/http"

	"boilertemp/internal/analytics"
)

const exportFilename = "temperature_data.csv"

func parseRangeQuery(r *http.Request) (analytics.Range, error) {
	rng, err := analytics.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		return "", errors.New("invalid 'range' (allowed: week, 3d, today, all)")
	}
	return rng, nil
}

func parseCorrelationsQuery(r *http.Request) (analytics.Range, analytics.Against, error) {
	rng, err := parseRangeQuery(r)
	if err != nil {
		return "", "", err
	}
	against, err := analytics.ParseAgainst(r.URL.Query().Get("against"))
	if err != nil {
		return "", "", errors.New("invalid 'against' (allowed: cloudiness, exterior)")
	}
	return rng, against, nil
}
