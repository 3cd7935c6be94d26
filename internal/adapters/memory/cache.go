// Package memory holds in-process stores used by the replay tool and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// ErrCacheMiss is returned by Cache.Get for a missing or expired key.
var ErrCacheMiss = errors.New("cache miss")

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache implements ports.CacheService in memory.
type Cache struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{data: make(map[string]entry), now: time.Now}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.data, key)
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value. A non-positive TTL never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		e.expiresAt = c.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	c.data[key] = e
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// SessionStore implements ports.SessionStore in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.TrackingSession
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.TrackingSession)}
}

func (s *SessionStore) Get(ctx context.Context, vehicleID string) (*domain.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[vehicleID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.TrackingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.VehicleID] = *sess
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, vehicleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, vehicleID)
	return nil
}
