package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
	"github.com/bobby-s-dev/weather-lookup/pkg/client"
)

// Fetcher produces snapshots for the manager.
type Fetcher interface {
	Resolve(city string) models.WeatherQuery
	FetchSnapshot(ctx context.Context, city string) (models.Snapshot, error)
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

// Manager drives sessions through their lookup flow. At most one fetch per
// session is in flight; starting another cancels the previous one.
type Manager struct {
	store   Store
	fetcher Fetcher
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[string]inflight
}

func NewManager(store Store, fetcher Fetcher, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]inflight),
	}
}

// New creates an idle session.
func (m *Manager) New(ctx context.Context) (*Session, error) {
	s := New(uuid.NewString(), m.now())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	m.logger.Debug("Session created", zap.String("session_id", s.ID))
	return s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

// Query submits a new lookup for city and waits for its outcome. A failed
// lookup is not an error: it is recorded in the returned session.
func (m *Manager) Query(ctx context.Context, id, city string) (*Session, error) {
	query := m.fetcher.Resolve(city)
	return m.run(ctx, id, func(s *Session) (uint64, error) {
		return s.Submit(query), nil
	})
}

// Retry re-runs the failed lookup of the session, up to MaxRetries times.
func (m *Manager) Retry(ctx context.Context, id string) (*Session, error) {
	return m.run(ctx, id, func(s *Session) (uint64, error) {
		return s.Retry()
	})
}

func (m *Manager) run(ctx context.Context, id string, start func(*Session) (uint64, error)) (*Session, error) {
	m.mu.Lock()
	s, err := m.store.Get(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	generation, err := start(s)
	if err != nil {
		m.mu.Unlock()
		return s, err
	}
	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("saving session %s: %w", id, err)
	}

	if prev, ok := m.inflight[id]; ok {
		m.logger.Debug("Cancelling superseded lookup",
			zap.String("session_id", id),
			zap.Uint64("generation", prev.generation))
		prev.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	m.inflight[id] = inflight{generation: generation, cancel: cancel}
	city := s.Query.City
	m.mu.Unlock()

	snapshot, fetchErr := m.fetcher.FetchSnapshot(fetchCtx, city)
	cancel()

	return m.finish(context.WithoutCancel(ctx), id, generation, snapshot, fetchErr)
}

func (m *Manager) finish(ctx context.Context, id string, generation uint64, snapshot models.Snapshot, fetchErr error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.inflight[id]; ok && cur.generation == generation {
		delete(m.inflight, id)
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if fetchErr != nil {
		err = s.Fail(generation, ErrorViewFor(fetchErr))
	} else {
		err = s.Succeed(generation, snapshot)
	}
	if err != nil {
		m.logger.Debug("Discarding stale lookup result",
			zap.String("session_id", id),
			zap.Uint64("generation", generation),
			zap.Uint64("current", s.Generation))
		return s, err
	}

	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session %s: %w", id, err)
	}

	m.logger.Info("Session lookup finished",
		zap.String("session_id", id),
		zap.String("city", s.Query.City),
		zap.String("state", string(s.State)),
		zap.Int("retry_count", s.RetryCount))
	return s, nil
}

func (m *Manager) GetStats(ctx context.Context) map[string]interface{} {
	stats := m.store.GetStats(ctx)
	stats["in_flight"] = m.InFlight()
	stats["max_retries"] = MaxRetries
	return stats
}

// InFlight reports how many lookups are currently running.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// ErrorViewFor turns a lookup failure into what the user sees.
func ErrorViewFor(err error) ErrorView {
	if errors.Is(err, context.Canceled) {
		return ErrorView{
			Kind:    "canceled",
			Status:  http.StatusRequestTimeout,
			Message: "request cancelled",
		}
	}
	ue := client.AsUpstream(err)
	return ErrorView{
		Kind:    ue.Kind.String(),
		Status:  ue.HTTPStatus(),
		Message: ue.Message,
		Details: ue.Details,
	}
}
