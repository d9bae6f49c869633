package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/internal/resolver"
	"github.com/bobby-s-dev/weather-lookup/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// WeatherCard is the display form of a Snapshot.
type WeatherCard struct {
	City          string
	Country       string
	Temperature   string
	FeelsLike     string
	TempMin       string
	TempMax       string
	Humidity      float64
	Pressure      float64
	WindSpeed     float64
	Description   string
	Glyph         string
	Condition     string
	IconURL       string
	Background    string
	Sunrise       string
	Sunset        string
	FormattedTime string
}

func NewWeatherCard(s models.Snapshot) WeatherCard {
	return WeatherCard{
		City:          s.City,
		Country:       s.Country,
		Temperature:   Temperature(s.Temperature),
		FeelsLike:     Temperature(s.FeelsLike),
		TempMin:       Temperature(s.TempMin),
		TempMax:       Temperature(s.TempMax),
		Humidity:      s.Humidity,
		Pressure:      s.Pressure,
		WindSpeed:     s.WindSpeed,
		Description:   s.Description,
		Glyph:         IconGlyph(s.Icon),
		Condition:     Condition(s.Icon),
		IconURL:       IconURL(s.Icon),
		Background:    Background(s.WeatherMain),
		Sunrise:       ClockTime(s.Sunrise, s.Timezone),
		Sunset:        ClockTime(s.Sunset, s.Timezone),
		FormattedTime: s.FormattedTime,
	}
}

// ErrorPanel shows a failed lookup and the retry affordance.
type ErrorPanel struct {
	Message    string
	Details    string
	RetryLabel string
	CanRetry   bool
}

func NewErrorPanel(ev session.ErrorView, retryCount int) ErrorPanel {
	label := "重试"
	if retryCount > 0 {
		label = fmt.Sprintf("重试 (%d/%d)", retryCount, session.MaxRetries)
	}
	return ErrorPanel{
		Message:    ev.Message,
		Details:    ev.Details,
		RetryLabel: label,
		CanRetry:   retryCount < session.MaxRetries,
	}
}

// OpenWeatherPage is everything the OpenWeatherMap page renders.
type OpenWeatherPage struct {
	Title       string
	Query       string
	Loading     bool
	Suggestions []string
	Card        *WeatherCard
	Error       *ErrorPanel
}

// NewOpenWeatherPage derives the page from the session state.
func NewOpenWeatherPage(s *session.Session) OpenWeatherPage {
	page := OpenWeatherPage{
		Title:       "OpenWeatherMap 天气查询",
		Suggestions: resolver.DefaultSuggestions(session.MaxRecent),
	}
	if s == nil {
		return page
	}
	if len(s.Recent) > 0 {
		page.Suggestions = s.Recent
	}

	page.Query = s.Query.City
	switch s.State {
	case session.StateLoading:
		page.Loading = true
	case session.StateSuccess:
		if s.Snapshot != nil {
			card := NewWeatherCard(*s.Snapshot)
			page.Card = &card
		}
	case session.StateFailed:
		if s.Error != nil {
			panel := NewErrorPanel(*s.Error, s.RetryCount)
			page.Error = &panel
		}
	}
	return page
}

// OpenMeteoCard is the display form of an Open-Meteo reading.
type OpenMeteoCard struct {
	Location    models.Location
	Temperature string
	Description string
	Glyph       string
	WindSpeed   float64
	Humidity    float64
	Date        string
}

func NewOpenMeteoCard(r models.OpenMeteoReading) OpenMeteoCard {
	return OpenMeteoCard{
		Location:    r.Location,
		Temperature: Temperature(r.Temperature),
		Description: r.Description,
		Glyph:       r.Icon,
		WindSpeed:   r.WindSpeed,
		Humidity:    r.Humidity,
		Date:        r.Date,
	}
}

// OpenMeteoPage is everything the Open-Meteo page renders.
type OpenMeteoPage struct {
	Title     string
	Loading   bool
	Locations []models.Location
	Card      *OpenMeteoCard
	Error     *ErrorPanel
}

// NewOpenMeteoPage builds the page for a reading or a failure.
func NewOpenMeteoPage(reading *models.OpenMeteoReading, ev *session.ErrorView) OpenMeteoPage {
	page := OpenMeteoPage{
		Title:     "Open-Meteo 天气查询",
		Locations: resolver.Locations(),
	}
	if ev != nil {
		panel := ErrorPanel{Message: ev.Message, Details: ev.Details}
		page.Error = &panel
	}
	if reading != nil {
		card := NewOpenMeteoCard(*reading)
		page.Card = &card
	}
	return page
}

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) OpenWeather(w io.Writer, page OpenWeatherPage) error {
	return r.tmpl.ExecuteTemplate(w, "openweather.html", page)
}

func (r *Renderer) OpenMeteo(w io.Writer, page OpenMeteoPage) error {
	return r.tmpl.ExecuteTemplate(w, "openmeteo.html", page)
}
