package api

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/internal/resolver"
	"github.com/bobby-s-dev/weather-lookup/internal/services"
	"github.com/bobby-s-dev/weather-lookup/internal/session"
	"github.com/bobby-s-dev/weather-lookup/internal/view"
	"github.com/bobby-s-dev/weather-lookup/pkg/client"
)

const sessionCookie = "weather_session"

// StatusReporter exposes background job status for the health endpoint.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type Handler struct {
	weather     *services.WeatherService
	sessions    *session.Manager
	renderer    *view.Renderer
	scheduler   StatusReporter
	defaultCity string
	logger      *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewHandler(weather *services.WeatherService, sessions *session.Manager, renderer *view.Renderer, defaultCity string, logger *zap.Logger) *Handler {
	return &Handler{
		weather:     weather,
		sessions:    sessions,
		renderer:    renderer,
		defaultCity: defaultCity,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithScheduler attaches the scheduler whose status the health check reports.
func (h *Handler) WithScheduler(s StatusReporter) *Handler {
	h.scheduler = s
	return h
}

// GetOpenWeather handles GET /api/openweather
func (h *Handler) GetOpenWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		city = h.defaultCity
	}

	h.logger.Info("Proxying OpenWeatherMap lookup", zap.String("city", city))

	weather, err := h.weather.FetchEnhanced(c.UserContext(), city)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(weather)
}

// GetCurrentWeather handles GET /api/v1/weather/current
func (h *Handler) GetCurrentWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorBody{
			Error: "City parameter is required",
		})
	}

	h.logger.Info("Fetching current weather", zap.String("city", city))

	snapshot, err := h.weather.FetchSnapshot(c.UserContext(), city)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(snapshot)
}

// CompareWeather handles GET /api/v1/weather/compare
func (h *Handler) CompareWeather(c *fiber.Ctx) error {
	city := strings.TrimSpace(c.Query("city"))
	if city == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorBody{
			Error: "City parameter is required",
		})
	}

	comparison, err := h.weather.Compare(c.UserContext(), city)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(comparison)
}

// GetOpenMeteoCurrent handles GET /api/v1/openmeteo/current
func (h *Handler) GetOpenMeteoCurrent(c *fiber.Ctx) error {
	loc, err := h.locationFromQuery(c)
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(models.ErrorBody{Error: fe.Message})
		}
		return err
	}

	reading, err := h.weather.FetchOpenMeteo(c.UserContext(), loc)
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(reading)
}

// GetOpenMeteoRandom handles GET /api/v1/openmeteo/random
func (h *Handler) GetOpenMeteoRandom(c *fiber.Ctx) error {
	reading, err := h.weather.FetchOpenMeteo(c.UserContext(), h.randomLocation())
	if err != nil {
		return upstreamError(c, err)
	}

	return c.JSON(reading)
}

func (h *Handler) locationFromQuery(c *fiber.Ctx) (models.Location, error) {
	if name := strings.TrimSpace(c.Query("location")); name != "" {
		loc, ok := resolver.FindLocation(name)
		if !ok {
			return models.Location{}, fiber.NewError(fiber.StatusNotFound, "unknown location: "+name)
		}
		return loc, nil
	}

	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return models.Location{}, fiber.NewError(fiber.StatusBadRequest, "location or lat/lon parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return models.Location{}, fiber.NewError(fiber.StatusBadRequest, "lat must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return models.Location{}, fiber.NewError(fiber.StatusBadRequest, "lon must be a number between -180 and 180")
	}

	return models.Location{Name: latStr + "," + lonStr, Lat: lat, Lon: lon}, nil
}

func (h *Handler) randomLocation() models.Location {
	h.rngMu.Lock()
	defer h.rngMu.Unlock()
	return resolver.RandomLocation(h.rng)
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	health := fiber.Map{
		"status":     "healthy",
		"timestamp":  time.Now(),
		"last_fetch": h.weather.GetLastFetchTime(),
		"uptime":     time.Since(startTime).String(),
		"stats":      h.weather.GetStats(),
		"sessions":   h.sessions.GetStats(c.UserContext()),
	}
	if h.scheduler != nil {
		health["scheduler"] = h.scheduler.GetStatus()
	}

	return c.JSON(health)
}

// GetCities handles GET /api/v1/cities
func (h *Handler) GetCities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cities":      resolver.PopularCities(),
		"known_names": resolver.Known(),
	})
}

// GetLocations handles GET /api/v1/locations
func (h *Handler) GetLocations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"locations": resolver.Locations(),
	})
}

type sessionResponse struct {
	*session.Session
	CanRetry    bool `json:"can_retry"`
	RetriesLeft int  `json:"retries_left"`
}

func newSessionResponse(s *session.Session) sessionResponse {
	return sessionResponse{Session: s, CanRetry: s.CanRetry(), RetriesLeft: s.RetriesLeft()}
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	s, err := h.sessions.New(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newSessionResponse(s))
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *fiber.Ctx) error {
	s, err := h.sessions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(newSessionResponse(s))
}

type queryRequest struct {
	City string `json:"city" form:"city"`
}

// QuerySession handles POST /api/v1/sessions/:id/query
func (h *Handler) QuerySession(c *fiber.Ctx) error {
	var req queryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorBody{
				Error:   "Invalid request body",
				Details: err.Error(),
			})
		}
	}
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = strings.TrimSpace(c.Query("city"))
	}
	if city == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorBody{
			Error: "City parameter is required",
		})
	}

	s, err := h.sessions.Query(c.UserContext(), c.Params("id"), city)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(newSessionResponse(s))
}

// RetrySession handles POST /api/v1/sessions/:id/retry
func (h *Handler) RetrySession(c *fiber.Ctx) error {
	s, err := h.sessions.Retry(c.UserContext(), c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(newSessionResponse(s))
}

// OpenWeatherPage handles GET /openweather
func (h *Handler) OpenWeatherPage(c *fiber.Ctx) error {
	s, err := h.pageSession(c)
	if err != nil {
		return err
	}

	if city := strings.TrimSpace(c.Query("city")); city != "" {
		s, err = h.sessions.Query(c.UserContext(), s.ID, city)
		if errors.Is(err, session.ErrSuperseded) {
			s, err = h.sessions.Get(c.UserContext(), s.ID)
		}
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := h.renderer.OpenWeather(&buf, view.NewOpenWeatherPage(s)); err != nil {
		return err
	}
	return sendHTML(c, buf.Bytes())
}

// RetryOpenWeatherPage handles POST /openweather/retry
func (h *Handler) RetryOpenWeatherPage(c *fiber.Ctx) error {
	s, err := h.pageSession(c)
	if err != nil {
		return err
	}

	_, err = h.sessions.Retry(c.UserContext(), s.ID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrRetryExhausted), errors.Is(err, session.ErrNotRetryable), errors.Is(err, session.ErrSuperseded):
		h.logger.Debug("Retry rejected", zap.String("session_id", s.ID), zap.Error(err))
	default:
		return err
	}

	return c.Redirect("/openweather", fiber.StatusSeeOther)
}

// OpenMeteoPage handles GET /openmeteo
func (h *Handler) OpenMeteoPage(c *fiber.Ctx) error {
	loc := h.randomLocation()
	if name := strings.TrimSpace(c.Query("location")); name != "" {
		found, ok := resolver.FindLocation(name)
		if !ok {
			return h.renderOpenMeteo(c, fiber.StatusNotFound, nil, &session.ErrorView{
				Message: "unknown location: " + name,
			})
		}
		loc = found
	}

	reading, err := h.weather.FetchOpenMeteo(c.UserContext(), loc)
	if err != nil {
		ev := session.ErrorViewFor(err)
		return h.renderOpenMeteo(c, ev.Status, nil, &ev)
	}
	return h.renderOpenMeteo(c, fiber.StatusOK, reading, nil)
}

func (h *Handler) renderOpenMeteo(c *fiber.Ctx, status int, reading *models.OpenMeteoReading, ev *session.ErrorView) error {
	var buf bytes.Buffer
	if err := h.renderer.OpenMeteo(&buf, view.NewOpenMeteoPage(reading, ev)); err != nil {
		return err
	}
	c.Status(status)
	return sendHTML(c, buf.Bytes())
}

// pageSession returns the session named by the cookie, starting a new one
// when the cookie is missing or the session has expired.
func (h *Handler) pageSession(c *fiber.Ctx) (*session.Session, error) {
	if id := c.Cookies(sessionCookie); id != "" {
		s, err := h.sessions.Get(c.UserContext(), id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
	}

	s, err := h.sessions.New(c.UserContext())
	if err != nil {
		return nil, err
	}
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return s, nil
}

func sendHTML(c *fiber.Ctx, body []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(body)
}

// upstreamError writes a failed lookup as {error, details} with the status
// of its failure class.
func upstreamError(c *fiber.Ctx, err error) error {
	if errors.Is(err, context.Canceled) {
		return c.Status(fiber.StatusRequestTimeout).JSON(models.ErrorBody{
			Error: "request cancelled",
		})
	}

	ue := client.AsUpstream(err)
	return c.Status(ue.HTTPStatus()).JSON(models.ErrorBody{
		Error:   ue.Message,
		Details: ue.Details,
	})
}

func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorBody{Error: err.Error()})
	case errors.Is(err, session.ErrRetryExhausted),
		errors.Is(err, session.ErrNotRetryable),
		errors.Is(err, session.ErrSuperseded):
		return c.Status(fiber.StatusConflict).JSON(models.ErrorBody{Error: err.Error()})
	}
	return err
}

var startTime = time.Now()
