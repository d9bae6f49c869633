package resolver

import (
	"math/rand"
	"strings"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
)

// City is a search suggestion: the label shown to users and the term sent upstream.
type City struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Country string `json:"country"`
}

var popularCities = []City{
	{Name: "伦敦", Value: "london", Country: "英国"},
	{Name: "纽约", Value: "new york", Country: "美国"},
	{Name: "东京", Value: "tokyo", Country: "日本"},
	{Name: "北京", Value: "beijing", Country: "中国"},
	{Name: "上海", Value: "shanghai", Country: "中国"},
	{Name: "巴黎", Value: "paris", Country: "法国"},
	{Name: "柏林", Value: "berlin", Country: "德国"},
	{Name: "莫斯科", Value: "moscow", Country: "俄罗斯"},
	{Name: "悉尼", Value: "sydney", Country: "澳大利亚"},
	{Name: "新加坡", Value: "singapore", Country: "新加坡"},
}

var locations = []models.Location{
	{Name: "纽约", Query: "new york", Lat: 40.7128, Lon: -74.0060, Country: "美国",
		ImageURL: "https://images.unsplash.com/photo-1496442226666-8d4d0e62e6e9?q=80&w=1920&auto=format&fit=crop"},
	{Name: "伦敦", Query: "london", Lat: 51.5074, Lon: -0.1278, Country: "英国",
		ImageURL: "https://images.unsplash.com/photo-1513635269975-59663e0ac1ad?q=80&w=1920&auto=format&fit=crop"},
	{Name: "东京", Query: "tokyo", Lat: 35.6762, Lon: 139.6503, Country: "日本",
		ImageURL: "https://images.unsplash.com/photo-1540959733332-eab4deabeeaf?q=80&w=1920&auto=format&fit=crop"},
	{Name: "悉尼", Query: "sydney", Lat: -33.8688, Lon: 151.2093, Country: "澳大利亚",
		ImageURL: "https://images.unsplash.com/photo-1506973035872-a4ec16b8e8d9?q=80&w=1920&auto=format&fit=crop"},
	{Name: "里约热内卢", Query: "rio de janeiro", Lat: -22.9068, Lon: -43.1729, Country: "巴西",
		ImageURL: "https://images.unsplash.com/photo-1483729558449-99ef09a8c325?q=80&w=1920&auto=format&fit=crop"},
	{Name: "开罗", Query: "cairo", Lat: 30.0444, Lon: 31.2357, Country: "埃及",
		ImageURL: "https://images.unsplash.com/photo-1572252009286-268acec5ca0a?q=80&w=1920&auto=format&fit=crop"},
	{Name: "北京", Query: "beijing", Lat: 39.9042, Lon: 116.4074, Country: "中国",
		ImageURL: "https://images.unsplash.com/photo-1508804185872-d7badad00f7d?q=80&w=1920&auto=format&fit=crop"},
	{Name: "巴黎", Query: "paris", Lat: 48.8566, Lon: 2.3522, Country: "法国",
		ImageURL: "https://images.unsplash.com/photo-1502602898657-3e91760cbb34?q=80&w=1920&auto=format&fit=crop"},
	{Name: "孟买", Query: "mumbai", Lat: 19.0760, Lon: 72.8777, Country: "印度",
		ImageURL: "https://images.unsplash.com/photo-1567157577867-05ccb1388e66?q=80&w=1920&auto=format&fit=crop"},
	{Name: "开普敦", Query: "cape town", Lat: -33.9249, Lon: 18.4241, Country: "南非",
		ImageURL: "https://images.unsplash.com/photo-1580060839134-75a5edca2e99?q=80&w=1920&auto=format&fit=crop"},
	{Name: "上海", Query: "shanghai", Lat: 31.2304, Lon: 121.4737, Country: "中国",
		ImageURL: "https://images.unsplash.com/photo-1538428494232-9c0d8a3ab403?q=80&w=1920&auto=format&fit=crop"},
	{Name: "香港", Query: "hong kong", Lat: 22.3193, Lon: 114.1694, Country: "中国",
		ImageURL: "https://images.unsplash.com/photo-1506970845246-18f21d533b20?q=80&w=1920&auto=format&fit=crop"},
}

// PopularCities returns a copy of the suggestion list.
func PopularCities() []City {
	out := make([]City, len(popularCities))
	copy(out, popularCities)
	return out
}

// DefaultSuggestions returns the display names of the first n popular cities.
func DefaultSuggestions(n int) []string {
	if n > len(popularCities) {
		n = len(popularCities)
	}
	out := make([]string, 0, n)
	for _, c := range popularCities[:n] {
		out = append(out, c.Name)
	}
	return out
}

// Locations returns a copy of the coordinate table.
func Locations() []models.Location {
	out := make([]models.Location, len(locations))
	copy(out, locations)
	return out
}

// FindLocation matches name against display names exactly, then against
// upstream terms case-insensitively, then against the resolved form of name.
func FindLocation(name string) (models.Location, bool) {
	for _, loc := range locations {
		if loc.Name == name {
			return loc, true
		}
	}
	term := strings.ToLower(strings.TrimSpace(Resolve(name)))
	for _, loc := range locations {
		if loc.Query == term {
			return loc, true
		}
	}
	return models.Location{}, false
}

// RandomLocation picks a location using rng, or the global source when rng is nil.
func RandomLocation(rng *rand.Rand) models.Location {
	if rng == nil {
		return locations[rand.Intn(len(locations))]
	}
	return locations[rng.Intn(len(locations))]
}

// DisplayName returns the suggestion label for an upstream term, falling
// back to the term itself.
func DisplayName(term string) string {
	for _, c := range popularCities {
		if strings.EqualFold(c.Value, term) {
			return c.Name
		}
	}
	return term
}
