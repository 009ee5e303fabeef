// Package sensors reads the boiler temperature boards.
//
// Each board serves a small XML status document with two channels,
// Temperature1 and Temperature2, formatted like "21.5°C".
package sensors

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"boilertemp/internal/readings/types"
)

// Getter is the HTTP GET the fetcher needs; *httpclient.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Board is one physical sensor unit. Channel1 and Channel2 are the indexes in
// types.Temperatures that Temperature1 and Temperature2 are written to.
type Board struct {
	Name     string
	URL      string
	Channel1 int
	Channel2 int
}

// wiring is the fixed board-to-column mapping. Board 3 is wired the other way
// round: its Temperature2 is temp_5 and its Temperature1 is temp_6.
var wiring = [3]struct {
	name               string
	channel1, channel2 int
}{
	{name: "Board 1", channel1: 0, channel2: 1},
	{name: "Board 2", channel1: 2, channel2: 3},
	{name: "Board 3", channel1: 5, channel2: 4},
}

// Boards pairs the three board URLs, in Board 1..3 order, with the fixed wiring.
func Boards(urls []string) ([]Board, error) {
	if len(urls) != len(wiring) {
		return nil, fmt.Errorf("want %d board urls, got %d", len(wiring), len(urls))
	}
	out := make([]Board, len(wiring))
	for i, w := range wiring {
		out[i] = Board{Name: w.name, URL: urls[i], Channel1: w.channel1, Channel2: w.channel2}
	}
	return out, nil
}

// Fetcher reads all boards and merges them into one set of temperatures.
type Fetcher struct {
	client Getter
	boards []Board
	logger *slog.Logger
}

func NewFetcher(client Getter, boards []Board, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, boards: boards, logger: logger}
}

// FetchTemperatures returns all six channels, or an error and no values when
// any board could not be read or parsed.
func (f *Fetcher) FetchTemperatures(ctx context.Context) (types.Temperatures, error) {
	var temps types.Temperatures
	for _, b := range f.boards {
		body, err := f.client.Get(ctx, b.URL)
		if err != nil {
			return types.Temperatures{}, fmt.Errorf("%s: %w", b.Name, err)
		}
		t1, t2, err := ParseStatus(body)
		if err != nil {
			return types.Temperatures{}, fmt.Errorf("%s: %w", b.Name, err)
		}
		temps[b.Channel1] = t1
		temps[b.Channel2] = t2
		f.logger.Debug("board read",
			"board", b.Name,
			types.Columns[b.Channel1], t1,
			types.Columns[b.Channel2], t2,
		)
	}
	return temps, nil
}

type status struct {
	Temperature1 *string `xml:"Temperature1"`
	Temperature2 *string `xml:"Temperature2"`
}

// ParseStatus extracts Temperature1 and Temperature2 from a board document.
func ParseStatus(body []byte) (t1, t2 float64, err error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	// Board firmware declares its own encoding for the degree sign.
	dec.CharsetReader = charset.NewReaderLabel

	var s status
	if err := dec.Decode(&s); err != nil {
		return 0, 0, fmt.Errorf("parse status xml: %w", err)
	}
	if t1, err = parseCelsius("Temperature1", s.Temperature1); err != nil {
		return 0, 0, err
	}
	if t2, err = parseCelsius("Temperature2", s.Temperature2); err != nil {
		return 0, 0, err
	}
	return t1, t2, nil
}

func parseCelsius(field string, v *string) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("status xml: missing %s", field)
	}
	s := strings.TrimSpace(strings.ReplaceAll(*v, "°C", ""))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("status xml: invalid %s %q: %w", field, *v, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("status xml: invalid %s %q: not a finite temperature", field, *v)
	}
	return f, nil
}
