package weather

import (
	"testing"
	"time"
)

func athens(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Athens")
	if err != nil {
		t.Fatalf("load Europe/Athens: %v", err)
	}
	return loc
}

func entry(at time.Time, clouds float64) ForecastEntry {
	e := ForecastEntry{Dt: at.Unix()}
	e.Clouds.All = clouds
	return e
}

func TestAverageDaylightCloudiness_Filter(t *testing.T) {
	loc := athens(t)
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, loc)

	var resp ForecastResponse
	resp.City.Sunrise = time.Date(2024, 3, 10, 6, 30, 0, 0, loc).Unix()
	resp.City.Sunset = time.Date(2024, 3, 10, 18, 15, 0, 0, loc).Unix()
	resp.List = []ForecastEntry{
		entry(now.Add(-3*time.Hour), 100),                     // past
		entry(now, 100),                                       // not strictly after now
		entry(now.Add(2*time.Hour), 40),                       // 12:00
		entry(time.Date(2024, 3, 11, 3, 0, 0, 0, loc), 100),   // night
		entry(time.Date(2024, 3, 11, 6, 30, 0, 0, loc), 20),   // exactly sunrise
		entry(time.Date(2024, 3, 11, 15, 0, 0, 0, loc), 60),   // afternoon
		entry(time.Date(2024, 3, 11, 18, 15, 1, 0, loc), 100), // just after sunset
		entry(now.Add(72*time.Hour), 80),                      // horizon edge
		entry(now.Add(75*time.Hour), 100),                     // beyond horizon
	}

	got := AverageDaylightCloudiness(resp, now, loc, 72*time.Hour)
	if got == nil {
		t.Fatal("average = nil, want 50")
	}
	if *got != 50 {
		t.Errorf("average = %v, want 50", *got)
	}
}

func TestAverageDaylightCloudiness_NoQualifyingEntries(t *testing.T) {
	loc := athens(t)
	now := time.Date(2024, 3, 10, 10, 0, 0, 0, loc)

	var resp ForecastResponse
	resp.City.Sunrise = time.Date(2024, 3, 10, 6, 30, 0, 0, loc).Unix()
	resp.City.Sunset = time.Date(2024, 3, 10, 18, 15, 0, 0, loc).Unix()

	tests := []struct {
		name string
		list []ForecastEntry
	}{
		{name: "empty list"},
		{name: "only night entries", list: []ForecastEntry{
			entry(time.Date(2024, 3, 10, 21, 0, 0, 0, loc), 10),
			entry(time.Date(2024, 3, 11, 0, 0, 0, 0, loc), 10),
			entry(time.Date(2024, 3, 11, 3, 0, 0, 0, loc), 10),
		}},
		{name: "only beyond horizon", list: []ForecastEntry{
			entry(time.Date(2024, 3, 14, 12, 0, 0, 0, loc), 10),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp.List = tt.list
			if got := AverageDaylightCloudiness(resp, now, loc, 72*time.Hour); got != nil {
				t.Errorf("average = %v, want nil", *got)
			}
		})
	}
}

func TestAverageDaylightCloudiness_ClearSkyIsZeroNotAbsent(t *testing.T) {
	loc := athens(t)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, loc)

	var resp ForecastResponse
	resp.City.Sunrise = time.Date(2024, 6, 1, 6, 5, 0, 0, loc).Unix()
	resp.City.Sunset = time.Date(2024, 6, 1, 20, 25, 0, 0, loc).Unix()
	resp.List = []ForecastEntry{entry(now.Add(3*time.Hour), 0)}

	got := AverageDaylightCloudiness(resp, now, loc, 72*time.Hour)
	if got == nil || *got != 0 {
		t.Fatalf("average = %v, want pointer to 0", got)
	}
}

func TestAverageDaylightCloudiness_AcrossDSTUsesLocalClock(t *testing.T) {
	loc := athens(t)
	// Athens moves from +02:00 to +03:00 on 2024-03-31.
	now := time.Date(2024, 3, 30, 10, 0, 0, 0, loc)

	var resp ForecastResponse
	resp.City.Sunrise = time.Date(2024, 3, 30, 7, 20, 0, 0, loc).Unix()
	resp.City.Sunset = time.Date(2024, 3, 30, 19, 40, 0, 0, loc).Unix()
	resp.List = []ForecastEntry{
		// 19:30 local summer time is daylight, though it is 18:30 at the winter offset.
		entry(time.Date(2024, 4, 1, 19, 30, 0, 0, loc), 30),
		// 19:50 local summer time is after the sunset clock time.
		entry(time.Date(2024, 4, 1, 19, 50, 0, 0, loc), 90),
	}

	got := AverageDaylightCloudiness(resp, now, loc, 72*time.Hour)
	if got == nil || *got != 30 {
		t.Fatalf("average = %v, want 30", got)
	}
}

func TestTimeOfDay(t *testing.T) {
	tm := time.Date(2024, 1, 2, 13, 45, 30, 999, time.UTC)
	if got, want := timeOfDay(tm), 13*time.Hour+45*time.Minute+30*time.Second; got != want {
		t.Errorf("timeOfDay = %v, want %v", got, want)
	}
}
