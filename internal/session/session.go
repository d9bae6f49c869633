package session

import (
	"errors"
	"time"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/internal/resolver"
)

const (
	// MaxRetries caps the number of user-initiated retries after a failure.
	MaxRetries = 3
	// MaxRecent bounds the suggestion list of a session.
	MaxRecent = 5
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrRetryExhausted = errors.New("retry limit reached")
	ErrNotRetryable   = errors.New("nothing to retry")
	ErrSuperseded     = errors.New("request superseded by a newer one")
)

// ErrorView is the failure shown to the user.
type ErrorView struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Session is the view state of one user. Generation increases on every
// transition into Loading; a result carrying an older generation is stale.
type Session struct {
	ID         string              `json:"id"`
	Query      models.WeatherQuery `json:"query"`
	State      State               `json:"state"`
	RetryCount int                 `json:"retry_count"`
	Generation uint64              `json:"generation"`
	Snapshot   *models.Snapshot    `json:"snapshot,omitempty"`
	Error      *ErrorView          `json:"error,omitempty"`
	Recent     []string            `json:"recent"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateIdle,
		Recent:    resolver.DefaultSuggestions(MaxRecent),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Submit starts a new user-initiated query and resets the retry counter.
func (s *Session) Submit(query models.WeatherQuery) uint64 {
	s.Query = query
	s.RetryCount = 0
	s.Error = nil
	s.Snapshot = nil
	return s.startLoading()
}

// Retry re-runs the failed query.
func (s *Session) Retry() (uint64, error) {
	if s.State != StateFailed {
		return 0, ErrNotRetryable
	}
	if s.RetryCount >= MaxRetries {
		return 0, ErrRetryExhausted
	}
	s.RetryCount++
	return s.startLoading(), nil
}

func (s *Session) startLoading() uint64 {
	s.State = StateLoading
	s.Generation++
	return s.Generation
}

// Succeed stores a fresh snapshot for the request of the given generation.
func (s *Session) Succeed(generation uint64, snapshot models.Snapshot) error {
	if generation != s.Generation {
		return ErrSuperseded
	}
	s.State = StateSuccess
	s.Snapshot = &snapshot
	s.Error = nil
	s.RetryCount = 0
	s.remember(resolver.DisplayName(s.Query.City))
	return nil
}

// remember puts name at the front of the suggestions unless it is already
// listed.
func (s *Session) remember(name string) {
	if name == "" {
		return
	}
	for _, r := range s.Recent {
		if r == name {
			return
		}
	}
	recent := append([]string{name}, s.Recent...)
	if len(recent) > MaxRecent {
		recent = recent[:MaxRecent]
	}
	s.Recent = recent
}

// Fail records the failure of the request of the given generation.
// The retry counter is left as is.
func (s *Session) Fail(generation uint64, view ErrorView) error {
	if generation != s.Generation {
		return ErrSuperseded
	}
	s.State = StateFailed
	s.Snapshot = nil
	s.Error = &view
	return nil
}

func (s *Session) CanRetry() bool {
	return s.State == StateFailed && s.RetryCount < MaxRetries
}

func (s *Session) RetriesLeft() int {
	if left := MaxRetries - s.RetryCount; left > 0 {
		return left
	}
	return 0
}

// Clone returns a deep copy safe to hand across goroutines.
func (s *Session) Clone() *Session {
	c := *s
	if s.Snapshot != nil {
		snap := *s.Snapshot
		c.Snapshot = &snap
	}
	if s.Error != nil {
		ev := *s.Error
		c.Error = &ev
	}
	if s.Recent != nil {
		c.Recent = append([]string(nil), s.Recent...)
	}
	return &c
}
