package weather

import "time"

// ForecastResponse is the subset of the 5 day / 3 hour forecast we read.
type ForecastResponse struct {
	List []ForecastEntry `json:"list"`
	City struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"city"`
}

type ForecastEntry struct {
	Dt     int64 `json:"dt"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
}

// AverageDaylightCloudiness averages clouds.all over entries with dt in
// (now, now+horizon] whose local time of day lies within the city's
// [sunrise, sunset] time of day. The daylight window is taken once from the
// city fields, not per forecast day. Returns nil when nothing qualifies.
func AverageDaylightCloudiness(resp ForecastResponse, now time.Time, loc *time.Location, horizon time.Duration) *float64 {
	if loc == nil {
		loc = time.UTC
	}
	sunrise := timeOfDay(time.Unix(resp.City.Sunrise, 0).In(loc))
	sunset := timeOfDay(time.Unix(resp.City.Sunset, 0).In(loc))
	end := now.Add(horizon)

	var sum float64
	var n int
	for _, e := range resp.List {
		at := time.Unix(e.Dt, 0)
		if !at.After(now) || at.After(end) {
			continue
		}
		tod := timeOfDay(at.In(loc))
		if tod < sunrise || tod > sunset {
			continue
		}
		sum += e.Clouds.All
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// timeOfDay is the wall-clock offset since local midnight.
func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
