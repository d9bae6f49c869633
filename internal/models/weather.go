package models

import (
	"time"
)

// WeatherQuery is what the user typed plus the term actually sent upstream.
type WeatherQuery struct {
	City     string `json:"city"`
	Resolved string `json:"resolved,omitempty"`
}

// Snapshot is the normalized reading for one city at one point in time.
// A fetch always produces a new Snapshot; existing ones are never modified.
type Snapshot struct {
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Temperature   float64   `json:"temperature"`
	FeelsLike     float64   `json:"feels_like"`
	TempMin       float64   `json:"temp_min"`
	TempMax       float64   `json:"temp_max"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	WindSpeed     float64   `json:"wind_speed"`
	WeatherID     int       `json:"weather_id"`
	WeatherMain   string    `json:"weather_main"`
	Description   string    `json:"description"`
	Icon          string    `json:"icon"`
	Sunrise       int64     `json:"sunrise"`
	Sunset        int64     `json:"sunset"`
	Timezone      int       `json:"timezone"`
	ObservedAt    int64     `json:"observed_at"`
	FormattedTime string    `json:"formatted_time"`
	LocalTime     string    `json:"local_time"`
	FetchedAt     time.Time `json:"fetched_at"`
	Source        string    `json:"source"`
}

// Location is a place the Open-Meteo client can query by coordinates.
type Location struct {
	Name     string  `json:"name"`
	Query    string  `json:"query"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Country  string  `json:"country"`
	ImageURL string  `json:"image_url,omitempty"`
}

// OpenMeteoReading is the current-conditions reading for a Location.
type OpenMeteoReading struct {
	Temperature float64  `json:"temperature"`
	WeatherCode int      `json:"weather_code"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	WindSpeed   float64  `json:"wind_speed"`
	Humidity    float64  `json:"humidity"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	Location    Location `json:"location"`
	Source      string   `json:"source"`
}

// Comparison holds readings for the same place from both upstreams.
// Either side may be nil when that upstream failed.
type Comparison struct {
	Query       WeatherQuery      `json:"query"`
	OpenWeather *Snapshot         `json:"openweather,omitempty"`
	OpenMeteo   *OpenMeteoReading `json:"openmeteo,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// ErrorBody is the JSON shape of every failed lookup.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
