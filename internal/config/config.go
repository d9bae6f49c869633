package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned when no OpenWeatherMap key is configured.
// There is deliberately no built-in fallback key.
var ErrMissingAPIKey = errors.New("OPENWEATHERMAP_API_KEY is not set")

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	WeatherAPI struct {
		OpenWeatherAPIKey string
		OpenWeatherURL    string
		OpenMeteoURL      string
		Timeout           time.Duration
		Language          string
		Units             string
		DefaultCity       string
	}

	Session struct {
		TTL      time.Duration
		MaxSize  int
		RedisURL string
	}

	Scheduler struct {
		SweepSchedule string
		ProbeSchedule string
		ProbeCity     string
	}

	RateLimit struct {
		Max    int
		Window time.Duration
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one exists.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	p := &parser{}
	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = p.duration("FIBER_READ_TIMEOUT", "15s")
	cfg.Server.WriteTimeout = p.duration("FIBER_WRITE_TIMEOUT", "15s")
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Upstream configuration
	cfg.WeatherAPI.OpenWeatherAPIKey = os.Getenv("OPENWEATHERMAP_API_KEY")
	cfg.WeatherAPI.OpenWeatherURL = getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5")
	cfg.WeatherAPI.OpenMeteoURL = getEnv("OPENMETEO_URL", "https://api.open-meteo.com/v1")
	cfg.WeatherAPI.Timeout = p.duration("UPSTREAM_TIMEOUT", "10s")
	cfg.WeatherAPI.Language = getEnv("OPENWEATHER_LANG", "zh_cn")
	cfg.WeatherAPI.Units = getEnv("OPENWEATHER_UNITS", "metric")
	cfg.WeatherAPI.DefaultCity = getEnv("DEFAULT_CITY", "london")

	// Session configuration
	cfg.Session.TTL = p.duration("SESSION_TTL", "30m")
	cfg.Session.MaxSize = p.int("SESSION_MAX", "10000")
	cfg.Session.RedisURL = getEnv("REDIS_URL", "")

	// Scheduler configuration
	cfg.Scheduler.SweepSchedule = getEnv("SWEEP_SCHEDULE", "@every 1m")
	cfg.Scheduler.ProbeSchedule = getEnv("PROBE_SCHEDULE", "@every 15m")
	cfg.Scheduler.ProbeCity = getEnv("PROBE_CITY", "london")

	// Rate limit configuration
	cfg.RateLimit.Max = p.int("RATE_LIMIT_MAX", "60")
	cfg.RateLimit.Window = p.duration("RATE_LIMIT_WINDOW", "1m")

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = p.int("CIRCUIT_BREAKER_THRESHOLD", "3")
	cfg.CircuitBreaker.Timeout = p.duration("CIRCUIT_BREAKER_TIMEOUT", "30s")

	// Retries of failed lookups are user-initiated, so client retries are off by default.
	cfg.Retry.MaxRetries = p.int("MAX_RETRIES", "0")
	cfg.Retry.Delay = p.duration("RETRY_DELAY", "1s")
	cfg.Retry.Multiplier = p.float("RETRY_MULTIPLIER", "2")

	if err := p.err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.WeatherAPI.OpenWeatherAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.WeatherAPI.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.WeatherAPI.Timeout)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Session.MaxSize <= 0 {
		return fmt.Errorf("SESSION_MAX must be positive, got %d", c.Session.MaxSize)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.Retry.MaxRetries)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects the first parse failure so LoadConfig can report it once.
type parser struct {
	first error
}

func (p *parser) fail(key, value string, err error) {
	if p.first == nil {
		p.first = fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
}

func (p *parser) err() error {
	return p.first
}

func (p *parser) duration(key, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return 0
	}
	return duration
}

func (p *parser) int(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return 0
	}
	return intValue
}

func (p *parser) float(key, defaultValue string) float64 {
	value := getEnv(key, defaultValue)
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return 0
	}
	return floatValue
}
