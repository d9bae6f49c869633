package session

import "context"

// Store persists sessions for the lifetime of their TTL.
// Get returns ErrNotFound for unknown or expired IDs.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Sweep removes expired sessions and reports how many were dropped.
	Sweep(ctx context.Context) (int, error)
	GetStats(ctx context.Context) map[string]interface{}
}
