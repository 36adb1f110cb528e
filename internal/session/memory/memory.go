package memory

import (
	"context"
	"time"

	"devexpense/internal/cache"
	"devexpense/internal/core"
)

// DefaultMaxSessions bounds the number of live sessions kept in memory.
const DefaultMaxSessions = 10000

// Store keeps sessions in an LRU cache whose entries expire after ttl of
// inactivity. It is safe for concurrent use.
type Store struct {
	items *cache.LRUCache[core.Session]
}

func New(maxSessions int, ttl time.Duration, opts ...cache.Option) *Store {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	opts = append([]cache.Option{cache.WithSlidingExpiration()}, opts...)
	return &Store{items: cache.NewLRUCache[core.Session](maxSessions, ttl, opts...)}
}

// Load returns a session if it is still alive.
func (s *Store) Load(_ context.Context, id string) (core.Session, bool, error) {
	sess, ok := s.items.Get(id)
	return sess, ok, nil
}

// Save stores the session. History slices are never mutated in place, so
// sharing them with the caller is safe.
func (s *Store) Save(_ context.Context, id string, sess core.Session) error {
	s.items.Set(id, sess)
	return nil
}

// CleanExpired implements cache.Cleaner.
func (s *Store) CleanExpired() int {
	return s.items.CleanExpired()
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	return s.items.Size()
}
