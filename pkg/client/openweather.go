package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"go.uber.org/zap"
)

const (
	defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"
	sourceOpenWeather     = "openweathermap"

	formattedTimeLayout = "2006/01/02 15:04:05"
	localTimeLayout     = "2006-01-02T15:04:05.000Z"

	// placeholderOffset is used for sunrise/sunset when the payload has none.
	placeholderOffset = int64(3600)
)

type OpenWeatherClient struct {
	*BaseClient
	apiKey  string
	baseURL string
	lang    string
	units   string
	now     func() time.Time
}

type OpenWeatherOptions struct {
	BaseURL  string
	Language string
	Units    string
}

type OpenWeatherCurrentResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Base string `json:"base,omitempty"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility,omitempty"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Timezone int    `json:"timezone"`
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Cod      int    `json:"cod"`
}

// EnhancedWeather is the upstream payload plus locally computed
// presentation fields. It is what the proxy endpoint returns.
type EnhancedWeather struct {
	OpenWeatherCurrentResponse
	FormattedTime string `json:"formatted_time"`
	LocalTime     string `json:"local_time"`

	// raw is the upstream body as received. Fields the typed response does
	// not model are served from it untouched.
	raw json.RawMessage
}

// MarshalJSON writes the upstream object with formatted_time, local_time and
// any sunrise/sunset placeholders added on top.
func (e EnhancedWeather) MarshalJSON() ([]byte, error) {
	type plain EnhancedWeather
	if len(e.raw) == 0 {
		return json.Marshal(plain(e))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.raw, &fields); err != nil || fields == nil {
		return json.Marshal(plain(e))
	}

	sys := map[string]json.RawMessage{}
	if rawSys, ok := fields["sys"]; ok {
		if err := json.Unmarshal(rawSys, &sys); err != nil || sys == nil {
			sys = map[string]json.RawMessage{}
		}
	}
	if missingEpoch(sys["sunrise"]) {
		sys["sunrise"] = json.RawMessage(strconv.FormatInt(e.Sys.Sunrise, 10))
	}
	if missingEpoch(sys["sunset"]) {
		sys["sunset"] = json.RawMessage(strconv.FormatInt(e.Sys.Sunset, 10))
	}
	encodedSys, err := json.Marshal(sys)
	if err != nil {
		return nil, err
	}
	fields["sys"] = encodedSys

	if fields["formatted_time"], err = json.Marshal(e.FormattedTime); err != nil {
		return nil, err
	}
	if fields["local_time"], err = json.Marshal(e.LocalTime); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func missingEpoch(v json.RawMessage) bool {
	var n float64
	if len(v) == 0 || json.Unmarshal(v, &n) != nil {
		return true
	}
	return n == 0
}

func NewOpenWeatherClient(apiKey string, opts OpenWeatherOptions, config ClientConfig, logger *zap.Logger) *OpenWeatherClient {
	baseClient := NewBaseClient(sourceOpenWeather, config, logger)

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenWeatherURL
	}
	lang := opts.Language
	if lang == "" {
		lang = "zh_cn"
	}
	units := opts.Units
	if units == "" {
		units = "metric"
	}

	return &OpenWeatherClient{
		BaseClient: baseClient,
		apiKey:     apiKey,
		baseURL:    baseURL,
		lang:       lang,
		units:      units,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for cache busting and placeholders.
func (c *OpenWeatherClient) WithClock(now func() time.Time) *OpenWeatherClient {
	c.now = now
	return c
}

// GetCurrentWeather fetches current conditions for query.Resolved (or
// query.City when unresolved). Errors are *UpstreamError with messages that
// refer to the city as the user typed it.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, query models.WeatherQuery) (*EnhancedWeather, error) {
	term := query.Resolved
	if term == "" {
		term = query.City
	}

	data, err := c.Get(ctx, c.currentURL(term), noCacheHeaders)
	if err != nil {
		return nil, describeOpenWeatherError(err, query.City)
	}

	var response OpenWeatherCurrentResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, &UpstreamError{
			Kind:    KindUpstream,
			Message: "failed to fetch weather data",
			Details: fmt.Sprintf("failed to parse response: %v", err),
			Err:     err,
		}
	}

	enhanced := c.enhance(response)
	enhanced.raw = json.RawMessage(data)
	return enhanced, nil
}

func (c *OpenWeatherClient) currentURL(term string) string {
	q := url.Values{}
	q.Set("q", term)
	q.Set("appid", c.apiKey)
	q.Set("lang", c.lang)
	q.Set("units", c.units)
	q.Set("_", strconv.FormatInt(c.now().UnixMilli(), 10))
	return c.baseURL + "/weather?" + q.Encode()
}

func (c *OpenWeatherClient) enhance(response OpenWeatherCurrentResponse) *EnhancedWeather {
	local := time.Unix(response.Dt+int64(response.Timezone), 0).UTC()

	enhanced := &EnhancedWeather{
		OpenWeatherCurrentResponse: response,
		FormattedTime:              local.Format(formattedTimeLayout),
		LocalTime:                  local.Format(localTimeLayout),
	}

	now := c.now().Unix()
	if enhanced.Sys.Sunrise == 0 {
		enhanced.Sys.Sunrise = now - placeholderOffset
	}
	if enhanced.Sys.Sunset == 0 {
		enhanced.Sys.Sunset = now + placeholderOffset
	}

	return enhanced
}

// Snapshot maps the enhanced payload into the display model.
func (e *EnhancedWeather) Snapshot(fetchedAt time.Time) models.Snapshot {
	s := models.Snapshot{
		City:          e.Name,
		Country:       e.Sys.Country,
		Temperature:   e.Main.Temp,
		FeelsLike:     e.Main.FeelsLike,
		TempMin:       e.Main.TempMin,
		TempMax:       e.Main.TempMax,
		Humidity:      e.Main.Humidity,
		Pressure:      e.Main.Pressure,
		WindSpeed:     e.Wind.Speed,
		Sunrise:       e.Sys.Sunrise,
		Sunset:        e.Sys.Sunset,
		Timezone:      e.Timezone,
		ObservedAt:    e.Dt,
		FormattedTime: e.FormattedTime,
		LocalTime:     e.LocalTime,
		FetchedAt:     fetchedAt,
		Source:        sourceOpenWeather,
	}
	if len(e.Weather) > 0 {
		s.WeatherID = e.Weather[0].ID
		s.WeatherMain = e.Weather[0].Main
		s.Description = e.Weather[0].Description
		s.Icon = e.Weather[0].Icon
	}
	return s
}

var noCacheHeaders = map[string]string{
	"Accept":        "application/json",
	"Cache-Control": "no-cache, no-store, must-revalidate",
	"Pragma":        "no-cache",
	"Expires":       "0",
}

// describeOpenWeatherError rewrites a failure into the message and details
// shown to the user.
func describeOpenWeatherError(err error, city string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	ue := AsUpstream(err)
	out := *ue
	switch ue.Kind {
	case KindNotFound:
		out.Message = fmt.Sprintf("city %q not found", city)
		out.Details = "try the English city name, e.g. 'beijing' instead of '北京'"
	case KindUnauthorized:
		out.Message = "invalid or inactive API key"
		out.Details = "check your OpenWeatherMap API key; new keys can take a few hours to activate"
	case KindRateLimited:
		out.Message = "API request quota exceeded"
		out.Details = "the OpenWeatherMap account reached its request limit; wait a while or upgrade the plan"
	case KindTimeout:
		out.Message = "request timed out"
		out.Details = "the server took too long to respond, please try again later"
	case KindNetwork:
		out.Message = "network connection error"
		out.Details = "could not connect to the OpenWeatherMap API, check your network connection"
	default:
		// Err is set only when the breaker refused the call; plain HTTP failures carry the body.
		if ue.Status > 0 && ue.Err == nil {
			out.Message = fmt.Sprintf("OpenWeatherMap API error: %d", ue.Status)
		}
	}
	return &out
}
