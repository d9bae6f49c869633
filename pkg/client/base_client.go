package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type BaseClient struct {
	name           string
	client         HTTPClient
	logger         *zap.Logger
	circuitBreaker *gobreaker.CircuitBreaker
	timeout        time.Duration
	maxRetries     int
	retryDelay     time.Duration
	multiplier     float64
}

type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Multiplier     float64
	Threshold      int
	BreakerTimeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient HTTPClient
}

func NewBaseClient(name string, config ClientConfig, logger *zap.Logger) *BaseClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Threshold <= 0 {
		config.Threshold = 3
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// The per-request context carries the deadline so timeouts can be told apart
		// from caller cancellation.
		httpClient = &http.Client{}
	}

	threshold := uint32(config.Threshold)
	breakerSettings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.6
		},
		// A wrong city name or a caller that went away says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				IsKind(err, KindNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("client", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BaseClient{
		name:           name,
		client:         httpClient,
		logger:         logger,
		circuitBreaker: gobreaker.NewCircuitBreaker(breakerSettings),
		timeout:        config.Timeout,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		multiplier:     config.Multiplier,
	}
}

// Name identifies the upstream in logs and health output.
func (c *BaseClient) Name() string {
	return c.name
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *BaseClient) BreakerState() string {
	return c.circuitBreaker.State().String()
}

// Get performs a GET through the circuit breaker. Failures are returned as
// *UpstreamError, except cancellation of ctx which is returned unwrapped.
func (c *BaseClient) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doGetWithRetry(ctx, rawURL, headers)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &UpstreamError{
				Kind:    KindUpstream,
				Status:  http.StatusServiceUnavailable,
				Message: "upstream temporarily unavailable",
				Details: fmt.Sprintf("%s circuit breaker is %s, try again later", c.name, c.BreakerState()),
				Err:     err,
			}
		}
		return nil, err
	}

	body, _ := result.([]byte)
	return body, nil
}

func (c *BaseClient) doGetWithRetry(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	var lastErr error
	logURL := redactURL(rawURL)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retryDelay) * math.Pow(c.multiplier, float64(attempt-1)))
			c.logger.Debug("Retrying request",
				zap.String("url", logURL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.doGet(ctx, rawURL, headers)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		c.logger.Warn("HTTP request failed",
			zap.String("client", c.name),
			zap.String("url", logURL),
			zap.Int("attempt", attempt),
			zap.Error(err))

		// Client errors other than rate limiting will not change on retry.
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status >= 400 && ue.Status < 500 && ue.Status != http.StatusTooManyRequests {
			break
		}
	}

	return nil, lastErr
}

func (c *BaseClient) doGet(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, c.transportError(ctx, err)
		}

		c.logger.Debug("Request successful",
			zap.String("client", c.name),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_size", len(body)))

		return body, nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, &UpstreamError{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("%s returned HTTP %d", c.name, resp.StatusCode),
		Details: string(payload),
	}
}

// transportError separates deadline expiry from other transport failures.
// Cancellation of the caller's ctx is passed through untouched.
func (c *BaseClient) transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UpstreamError{
			Kind:    KindTimeout,
			Message: "request timed out",
			Details: fmt.Sprintf("%s did not respond within %s", c.name, c.timeout),
			Err:     err,
		}
	}

	return &UpstreamError{
		Kind:    KindNetwork,
		Message: "network connection error",
		Details: fmt.Sprintf("could not reach %s", c.name),
		Err:     err,
	}
}

// redactURL hides credentials carried in the query string.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparsable url]"
	}
	q := u.Query()
	for _, key := range []string{"appid", "apikey", "key"} {
		if q.Has(key) {
			q.Set(key, "[API_KEY]")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
