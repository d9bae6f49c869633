package view

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const defaultBackground = "https://images.unsplash.com/photo-1601297183305-6df142704ea2?q=80&w=1024&auto=format&fit=crop"

var backgrounds = map[string]string{
	"Clear":        defaultBackground,
	"Clouds":       "https://images.unsplash.com/photo-1525920980995-f8a382bf42c5?q=80&w=1024&auto=format&fit=crop",
	"Rain":         "https://images.unsplash.com/photo-1519692933481-e162a57d6721?q=80&w=1024&auto=format&fit=crop",
	"Drizzle":      "https://images.unsplash.com/photo-1556485689-33e55ab56127?q=80&w=1024&auto=format&fit=crop",
	"Thunderstorm": "https://images.unsplash.com/photo-1605727216801-e27ce1d0cc28?q=80&w=1024&auto=format&fit=crop",
	"Snow":         "https://images.unsplash.com/photo-1516431762806-5a41e2353ae4?q=80&w=1024&auto=format&fit=crop",
	"Mist":         "https://images.unsplash.com/photo-1543968996-ee822b8176ba?q=80&w=1024&auto=format&fit=crop",
	"Smoke":        "https://images.unsplash.com/photo-1543968996-ee822b8176ba?q=80&w=1024&auto=format&fit=crop",
	"Haze":         "https://images.unsplash.com/photo-1533757704860-f673d420d2d5?q=80&w=1024&auto=format&fit=crop",
	"Dust":         "https://images.unsplash.com/photo-1532928448350-27c4fb515a07?q=80&w=1024&auto=format&fit=crop",
	"Fog":          "https://images.unsplash.com/photo-1543968996-ee822b8176ba?q=80&w=1024&auto=format&fit=crop",
}

// Temperature renders a reading rounded to whole degrees, e.g. "15°C".
func Temperature(celsius float64) string {
	return fmt.Sprintf("%d°C", int(math.Round(celsius)))
}

// IconURL is the OpenWeatherMap image for an icon code such as "01d".
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", icon)
}

// IconGlyph maps an OpenWeatherMap icon code to an emoji. The two-digit
// prefix is the condition, the suffix is d(ay) or n(ight).
func IconGlyph(icon string) string {
	if len(icon) < 2 {
		return "🌡️"
	}
	night := strings.HasSuffix(icon, "n")
	switch icon[:2] {
	case "01":
		if night {
			return "🌙"
		}
		return "☀️"
	case "02":
		return "⛅"
	case "03", "04":
		return "☁️"
	case "09":
		return "🌧️"
	case "10":
		return "🌦️"
	case "11":
		return "⛈️"
	case "13":
		return "❄️"
	case "50":
		return "🌫️"
	default:
		return "🌡️"
	}
}

// Condition names the sky category of an OpenWeatherMap icon code.
func Condition(icon string) string {
	if len(icon) < 2 {
		return "unknown"
	}
	switch icon[:2] {
	case "01":
		return "clear-sky"
	case "02":
		return "few-clouds"
	case "03", "04":
		return "clouds"
	case "09", "10":
		return "rain"
	case "11":
		return "thunderstorm"
	case "13":
		return "snow"
	case "50":
		return "mist"
	default:
		return "unknown"
	}
}

// Background picks a card image for an OpenWeatherMap weather category.
func Background(weatherMain string) string {
	if url, ok := backgrounds[weatherMain]; ok {
		return url
	}
	return defaultBackground
}

// ClockTime formats an epoch in the city's own offset as "15:04".
func ClockTime(epoch int64, offsetSeconds int) string {
	if epoch == 0 {
		return "--:--"
	}
	return time.Unix(epoch+int64(offsetSeconds), 0).UTC().Format("15:04")
}
