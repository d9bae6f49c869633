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
	defaultOpenMeteoURL = "https://api.open-meteo.com/v1"
	sourceOpenMeteo     = "open-meteo"

	openMeteoCurrentFields = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"
)

type OpenMeteoClient struct {
	*BaseClient
	baseURL string
}

type OpenMeteoCurrentResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Current   struct {
		Time               string  `json:"time"`
		Interval           int     `json:"interval"`
		Temperature2M      float64 `json:"temperature_2m"`
		RelativeHumidity2M float64 `json:"relative_humidity_2m"`
		WeatherCode        int     `json:"weather_code"`
		WindSpeed10M       float64 `json:"wind_speed_10m"`
	} `json:"current"`
	CurrentUnits struct {
		Time          string `json:"time"`
		Temperature2M string `json:"temperature_2m"`
		WindSpeed10M  string `json:"wind_speed_10m"`
	} `json:"current_units"`
}

func NewOpenMeteoClient(baseURL string, config ClientConfig, logger *zap.Logger) *OpenMeteoClient {
	baseClient := NewBaseClient(sourceOpenMeteo, config, logger)

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}

	return &OpenMeteoClient{
		BaseClient: baseClient,
		baseURL:    baseURL,
	}
}

// GetCurrentWeather fetches current conditions at the location's coordinates.
func (c *OpenMeteoClient) GetCurrentWeather(ctx context.Context, loc models.Location) (*models.OpenMeteoReading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("current", openMeteoCurrentFields)
	q.Set("timezone", "auto")

	data, err := c.Get(ctx, c.baseURL+"/forecast?"+q.Encode(), map[string]string{"Accept": "application/json"})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		ue := *AsUpstream(err)
		if ue.Status > 0 && ue.Err == nil {
			ue.Message = fmt.Sprintf("Open-Meteo API error: %d", ue.Status)
		}
		return nil, &ue
	}

	var response OpenMeteoCurrentResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, &UpstreamError{
			Kind:    KindUpstream,
			Message: "failed to fetch weather data",
			Details: fmt.Sprintf("failed to parse response: %v", err),
			Err:     err,
		}
	}

	code := response.Current.WeatherCode
	return &models.OpenMeteoReading{
		Temperature: response.Current.Temperature2M,
		WeatherCode: code,
		Description: WeatherCodeDescription(code),
		Icon:        WeatherCodeIcon(code),
		WindSpeed:   response.Current.WindSpeed10M,
		Humidity:    response.Current.RelativeHumidity2M,
		Date:        displayDate(response.Current.Time),
		Time:        response.Current.Time,
		Location:    loc,
		Source:      sourceOpenMeteo,
	}, nil
}

// displayDate turns Open-Meteo's local "2006-01-02T15:04" into "2006/1/2".
func displayDate(value string) string {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006/1/2")
		}
	}
	return value
}

// WMO weather interpretation codes
var weatherCodes = map[int]string{
	0:  "晴朗",
	1:  "大部晴朗",
	2:  "部分多云",
	3:  "阴天",
	45: "雾",
	48: "雾凇",
	51: "小毛毛雨",
	53: "中毛毛雨",
	55: "大毛毛雨",
	56: "小冻雨",
	57: "大冻雨",
	61: "小雨",
	63: "中雨",
	65: "大雨",
	66: "小冻雨",
	67: "大冻雨",
	71: "小雪",
	73: "中雪",
	75: "大雪",
	77: "雪粒",
	80: "小阵雨",
	81: "中阵雨",
	82: "强阵雨",
	85: "小阵雪",
	86: "大阵雪",
	95: "雷暴",
	96: "雷暴伴小冰雹",
	99: "雷暴伴大冰雹",
}

func WeatherCodeDescription(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "未知"
}

func WeatherCodeIcon(code int) string {
	switch {
	case code == 0:
		return "☀️"
	case code == 1 || code == 2:
		return "🌤️"
	case code == 3:
		return "☁️"
	case code == 45 || code == 48:
		return "🌫️"
	case code >= 51 && code <= 67:
		return "🌧️"
	case code >= 71 && code <= 77:
		return "❄️"
	case code >= 80 && code <= 82:
		return "🌦️"
	case code >= 85 && code <= 86:
		return "🌨️"
	case code >= 95:
		return "⛈️"
	default:
		return "❓"
	}
}
