package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// row is the flat wire shape of a Reading; field names match the table columns.
type row struct {
	Timestamp           time.Time  `json:"timestamp"`
	Temp1               float64    `json:"temp_1"`
	Temp2               float64    `json:"temp_2"`
	Temp3               float64    `json:"temp_3"`
	Temp4               float64    `json:"temp_4"`
	Temp5               float64    `json:"temp_5"`
	Temp6               float64    `json:"temp_6"`
	CurrentTemp         *float64   `json:"current_temp,omitempty"`
	CurrentHumidity     *float64   `json:"current_humidity,omitempty"`
	CurrentCloudiness   *float64   `json:"current_cloudiness,omitempty"`
	CurrentSunrise      *time.Time `json:"current_sunrise,omitempty"`
	CurrentSunset       *time.Time `json:"current_sunset,omitempty"`
	ThreeDayForecastAvg *float64   `json:"three_day_forecast_avg,omitempty"`
}

func (r Reading) MarshalJSON() ([]byte, error) {
	t := r.Temperatures
	out := row{
		Timestamp: r.Timestamp,
		Temp1:     t[0], Temp2: t[1], Temp3: t[2],
		Temp4: t[3], Temp5: t[4], Temp6: t[5],
	}
	if w := r.Weather; w != nil {
		out.CurrentTemp = &w.Temp
		out.CurrentHumidity = &w.Humidity
		out.CurrentCloudiness = &w.Cloudiness
		out.CurrentSunrise = &w.Sunrise
		out.CurrentSunset = &w.Sunset
		out.ThreeDayForecastAvg = w.ThreeDayForecastAvg
	}
	return json.Marshal(out)
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	var in row
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Timestamp.IsZero() {
		return fmt.Errorf("reading: timestamp is required")
	}
	r.Timestamp = in.Timestamp
	r.Temperatures = Temperatures{in.Temp1, in.Temp2, in.Temp3, in.Temp4, in.Temp5, in.Temp6}
	r.Weather = nil
	if in.CurrentTemp != nil && in.CurrentHumidity != nil && in.CurrentCloudiness != nil &&
		in.CurrentSunrise != nil && in.CurrentSunset != nil {
		r.Weather = &Weather{
			CurrentConditions: CurrentConditions{
				Temp:       *in.CurrentTemp,
				Humidity:   *in.CurrentHumidity,
				Cloudiness: *in.CurrentCloudiness,
				Sunrise:    *in.CurrentSunrise,
				Sunset:     *in.CurrentSunset,
			},
			ThreeDayForecastAvg: in.ThreeDayForecastAvg,
		}
	}
	return nil
}
