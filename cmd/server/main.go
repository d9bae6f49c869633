package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobby-s-dev/weather-lookup/internal/api"
	"github.com/bobby-s-dev/weather-lookup/internal/config"
	"github.com/bobby-s-dev/weather-lookup/internal/scheduler"
	"github.com/bobby-s-dev/weather-lookup/internal/services"
	"github.com/bobby-s-dev/weather-lookup/internal/session"
	"github.com/bobby-s-dev/weather-lookup/internal/view"
)

func main() {
	// Initialize logger
	logger, level := newLogger()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Weather Lookup Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if lvl, err := zapcore.ParseLevel(cfg.Server.LogLevel); err == nil {
		level.SetLevel(lvl)
	} else {
		logger.Warn("Unknown LOG_LEVEL, keeping info", zap.String("level", cfg.Server.LogLevel))
	}

	// Initialize weather service
	weather := services.NewWeatherService(cfg, logger)

	// Initialize session store
	store, closeStore := newSessionStore(cfg, logger)
	defer closeStore()

	manager := session.NewManager(store, weather, logger)

	renderer, err := view.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}

	// Initialize scheduler
	jobs := scheduler.NewScheduler(store, weather, scheduler.Config{
		SweepSchedule: cfg.Scheduler.SweepSchedule,
		ProbeSchedule: cfg.Scheduler.ProbeSchedule,
		ProbeCity:     cfg.Scheduler.ProbeCity,
		JobTimeout:    cfg.WeatherAPI.Timeout * 2,
	}, logger)

	// Create Fiber app
	app := api.NewApp(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	// Setup handlers and routes
	handler := api.NewHandler(weather, manager, renderer, cfg.WeatherAPI.DefaultCity, logger).WithScheduler(jobs)
	api.SetupRoutes(app, handler, api.RouteConfig{
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window,
		AccessLog:       true,
	}, logger)

	// Start scheduler
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	jobs.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func newLogger() (*zap.Logger, zap.AtomicLevel) {
	zapConfig := zap.NewProductionConfig()

	logger, err := zapConfig.Build()
	if err != nil {
		logger = zap.NewExample()
		logger.Warn("Falling back to example logger", zap.Error(err))
	}
	return logger, zapConfig.Level
}

// newSessionStore uses Redis when REDIS_URL is set and an in-process store
// otherwise.
func newSessionStore(cfg *config.Config, logger *zap.Logger) (session.Store, func()) {
	if cfg.Session.RedisURL == "" {
		logger.Info("Using in-memory session store",
			zap.Duration("ttl", cfg.Session.TTL),
			zap.Int("max_size", cfg.Session.MaxSize))
		return session.NewMemoryStore(cfg.Session.TTL, cfg.Session.MaxSize, logger), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := session.Connect(ctx, cfg.Session.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("Using redis session store", zap.Duration("ttl", cfg.Session.TTL))

	return session.NewRedisStore(client, cfg.Session.TTL, logger), func() {
		_ = client.Close()
	}
}
