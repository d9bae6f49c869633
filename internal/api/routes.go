package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
)

// NewApp creates the fiber app. Request values are copied out of fasthttp's
// buffers since sessions and in-flight lookups keep them past the request.
func NewApp(readTimeout, writeTimeout time.Duration) *fiber.App {
	return fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Immutable:    true,
		JSONEncoder:  json.Marshal,
		ErrorHandler: ErrorHandler,
	})
}

type RouteConfig struct {
	RateLimitMax    int
	RateLimitWindow time.Duration
	AccessLog       bool
}

func SetupRoutes(app *fiber.App, handler *Handler, cfg RouteConfig, log *zap.Logger) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
	}))

	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
			TimeFormat: time.RFC3339,
		}))
	}

	// Rate limit everything but the health check
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/api/v1/health"
			},
			LimitReached: func(c *fiber.Ctx) error {
				log.Warn("Rate limit reached",
					zap.String("ip", c.IP()),
					zap.String("path", c.Path()))
				return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorBody{
					Error: "Too many requests, please slow down",
				})
			},
		}))
	}

	// Lookups are always fresh
	app.Use("/api", noCache)

	// Proxy route
	app.Get("/api/openweather", handler.GetOpenWeather)

	// API v1 routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", handler.GetHealth)

	// Cities and locations
	api.Get("/cities", handler.GetCities)
	api.Get("/locations", handler.GetLocations)

	// Weather routes
	weather := api.Group("/weather")
	weather.Get("/current", handler.GetCurrentWeather)
	weather.Get("/compare", handler.CompareWeather)

	openMeteo := api.Group("/openmeteo")
	openMeteo.Get("/current", handler.GetOpenMeteoCurrent)
	openMeteo.Get("/random", handler.GetOpenMeteoRandom)

	// Session routes
	api.Post("/sessions", handler.CreateSession)
	api.Get("/sessions/:id", handler.GetSession)
	api.Post("/sessions/:id/query", handler.QuerySession)
	api.Post("/sessions/:id/retry", handler.RetrySession)

	// Pages
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/openweather", fiber.StatusFound)
	})
	app.Get("/openweather", handler.OpenWeatherPage)
	app.Post("/openweather/retry", handler.RetryOpenWeatherPage)
	app.Get("/openmeteo", handler.OpenMeteoPage)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}

func noCache(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	return c.Next()
}

// ErrorHandler renders errors that escaped a handler as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
