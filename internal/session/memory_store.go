package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type storeItem struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. When full, the session closest to
// expiry is evicted.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]storeItem
	logger  *zap.Logger
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	evicted int
	expired int
}

func NewMemoryStore(ttl time.Duration, maxSize int, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]storeItem),
		logger:  logger,
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	item, exists := m.items[id]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	if m.now().After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, id)
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	return item.session.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[s.ID]; !exists && m.maxSize > 0 && len(m.items) >= m.maxSize {
		m.evictOldest()
	}

	expiresAt := m.now().Add(m.ttl)
	m.items[s.ID] = storeItem{session: s.Clone(), expiresAt: expiresAt}

	m.logger.Debug("Session saved",
		zap.String("session_id", s.ID),
		zap.String("state", string(s.State)),
		zap.Time("expires_at", expiresAt))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range m.items {
		if oldestKey == "" || item.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.expiresAt
		}
	}

	if oldestKey != "" {
		delete(m.items, oldestKey)
		m.evicted++
		m.logger.Debug("Evicted oldest session",
			zap.String("session_id", oldestKey))
	}
}

func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expiredCount := 0
	for id, item := range m.items {
		if now.After(item.expiresAt) {
			delete(m.items, id)
			expiredCount++
		}
	}
	m.expired += expiredCount

	if expiredCount > 0 {
		m.logger.Debug("Swept expired sessions",
			zap.Int("count", expiredCount))
	}
	return expiredCount, nil
}

func (m *MemoryStore) GetStats(_ context.Context) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"backend":  "memory",
		"sessions": len(m.items),
		"max_size": m.maxSize,
		"ttl":      m.ttl.String(),
		"evicted":  m.evicted,
		"expired":  m.expired,
	}
}
