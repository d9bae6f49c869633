package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bobby-s-dev/weather-lookup/internal/config"
	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/internal/resolver"
	"github.com/bobby-s-dev/weather-lookup/pkg/client"
)

// CityWeatherClient looks up current weather by city name.
type CityWeatherClient interface {
	GetCurrentWeather(ctx context.Context, query models.WeatherQuery) (*client.EnhancedWeather, error)
	BreakerState() string
}

// LocationWeatherClient looks up current weather by coordinates.
type LocationWeatherClient interface {
	GetCurrentWeather(ctx context.Context, loc models.Location) (*models.OpenMeteoReading, error)
	BreakerState() string
}

// ProbeResult records the outcome of the last scheduled upstream probe.
type ProbeResult struct {
	City     string        `json:"city"`
	At       time.Time     `json:"at"`
	OK       bool          `json:"ok"`
	Kind     string        `json:"kind,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

type WeatherService struct {
	openWeather CityWeatherClient
	openMeteo   LocationWeatherClient
	logger      *zap.Logger
	now         func() time.Time

	mu             sync.RWMutex
	lastFetchTime  time.Time
	successCount   int
	failureCount   int
	failuresByKind map[string]int
	lastProbe      *ProbeResult
}

func NewWeatherService(cfg *config.Config, logger *zap.Logger) *WeatherService {
	clientConfig := client.ClientConfig{
		Timeout:        cfg.WeatherAPI.Timeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		Multiplier:     cfg.Retry.Multiplier,
		Threshold:      cfg.CircuitBreaker.Threshold,
		BreakerTimeout: cfg.CircuitBreaker.Timeout,
	}

	openWeather := client.NewOpenWeatherClient(
		cfg.WeatherAPI.OpenWeatherAPIKey,
		client.OpenWeatherOptions{
			BaseURL:  cfg.WeatherAPI.OpenWeatherURL,
			Language: cfg.WeatherAPI.Language,
			Units:    cfg.WeatherAPI.Units,
		},
		clientConfig,
		logger,
	)
	logger.Info("OpenWeatherMap client initialized")

	openMeteo := client.NewOpenMeteoClient(cfg.WeatherAPI.OpenMeteoURL, clientConfig, logger)
	logger.Info("Open-Meteo client initialized")

	return NewWeatherServiceWithClients(openWeather, openMeteo, logger)
}

// NewWeatherServiceWithClients wires a service around the given clients.
func NewWeatherServiceWithClients(openWeather CityWeatherClient, openMeteo LocationWeatherClient, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		openWeather:    openWeather,
		openMeteo:      openMeteo,
		logger:         logger,
		now:            time.Now,
		failuresByKind: make(map[string]int),
	}
}

// Resolve translates a display name into the query sent upstream.
func (s *WeatherService) Resolve(city string) models.WeatherQuery {
	query := models.WeatherQuery{City: city, Resolved: resolver.Resolve(city)}
	if query.Resolved != city {
		s.logger.Debug("City name resolved",
			zap.String("city", city),
			zap.String("resolved", query.Resolved))
	}
	return query
}

// FetchEnhanced returns the enhanced OpenWeatherMap payload for city.
func (s *WeatherService) FetchEnhanced(ctx context.Context, city string) (*client.EnhancedWeather, error) {
	query := s.Resolve(city)

	startTime := s.now()
	weather, err := s.openWeather.GetCurrentWeather(ctx, query)
	s.record(err)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("Failed to fetch current weather",
				zap.String("city", city),
				zap.String("resolved", query.Resolved),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Current weather fetched",
		zap.String("city", city),
		zap.String("resolved", query.Resolved),
		zap.Duration("duration", s.now().Sub(startTime)))

	return weather, nil
}

// FetchSnapshot returns a fresh snapshot for city.
func (s *WeatherService) FetchSnapshot(ctx context.Context, city string) (models.Snapshot, error) {
	weather, err := s.FetchEnhanced(ctx, city)
	if err != nil {
		return models.Snapshot{}, err
	}
	return weather.Snapshot(s.now()), nil
}

// FetchOpenMeteo returns the current Open-Meteo reading for loc.
func (s *WeatherService) FetchOpenMeteo(ctx context.Context, loc models.Location) (*models.OpenMeteoReading, error) {
	reading, err := s.openMeteo.GetCurrentWeather(ctx, loc)
	s.record(err)
	if err != nil {
		s.logger.Warn("Failed to fetch Open-Meteo weather",
			zap.String("location", loc.Name),
			zap.Float64("lat", loc.Lat),
			zap.Float64("lon", loc.Lon),
			zap.Error(err))
		return nil, err
	}
	return reading, nil
}

// Compare queries both upstreams in parallel. Open-Meteo is only consulted
// when the city is in the coordinate table. An error is returned only when
// no upstream produced data.
func (s *WeatherService) Compare(ctx context.Context, city string) (*models.Comparison, error) {
	query := s.Resolve(city)
	loc, hasLocation := resolver.FindLocation(city)

	var (
		snapshot *models.Snapshot
		reading  *models.OpenMeteoReading
		owErr    error
		omErr    error
	)

	var g errgroup.Group
	g.Go(func() error {
		snap, err := s.FetchSnapshot(ctx, city)
		if err != nil {
			owErr = err
			return nil
		}
		snapshot = &snap
		return nil
	})
	if hasLocation {
		g.Go(func() error {
			r, err := s.FetchOpenMeteo(ctx, loc)
			if err != nil {
				omErr = err
				return nil
			}
			reading = r
			return nil
		})
	}
	_ = g.Wait()

	comparison := &models.Comparison{
		Query:       query,
		OpenWeather: snapshot,
		OpenMeteo:   reading,
	}
	if owErr != nil || omErr != nil || !hasLocation {
		comparison.Errors = make(map[string]string)
	}
	if owErr != nil {
		comparison.Errors["openweathermap"] = client.AsUpstream(owErr).Message
	}
	if omErr != nil {
		comparison.Errors["open-meteo"] = client.AsUpstream(omErr).Message
	}
	if !hasLocation {
		comparison.Errors["open-meteo"] = fmt.Sprintf("no coordinates known for %q", city)
	}

	if snapshot == nil && reading == nil {
		return comparison, owErr
	}
	return comparison, nil
}

// Probe fetches city once and remembers the outcome for health reporting.
func (s *WeatherService) Probe(ctx context.Context, city string) ProbeResult {
	startTime := s.now()
	_, err := s.FetchEnhanced(ctx, city)

	result := ProbeResult{
		City:     city,
		At:       startTime,
		OK:       err == nil,
		Duration: s.now().Sub(startTime),
	}
	if err != nil {
		ue := client.AsUpstream(err)
		result.Kind = ue.Kind.String()
		result.Error = ue.Message
	}

	s.mu.Lock()
	s.lastProbe = &result
	s.mu.Unlock()

	return result
}

func (s *WeatherService) record(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastFetchTime = s.now()
	if err != nil {
		s.failureCount++
		s.failuresByKind[client.AsUpstream(err).Kind.String()]++
		return
	}
	s.successCount++
}

func (s *WeatherService) GetLastFetchTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetchTime
}

func (s *WeatherService) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failures := make(map[string]int, len(s.failuresByKind))
	for k, v := range s.failuresByKind {
		failures[k] = v
	}

	stats := map[string]interface{}{
		"last_fetch_time":  s.lastFetchTime,
		"success_count":    s.successCount,
		"failure_count":    s.failureCount,
		"failures_by_kind": failures,
		"breakers": map[string]string{
			"openweathermap": s.openWeather.BreakerState(),
			"open-meteo":     s.openMeteo.BreakerState(),
		},
	}
	if s.lastProbe != nil {
		stats["last_probe"] = *s.lastProbe
	}
	return stats
}
