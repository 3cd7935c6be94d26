package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

const sessionKeyPrefix = "tracking:session:"

// SessionStore implements ports.SessionStore on a shared Valkey client.
// Sessions expire ttl after their last save.
type SessionStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewSessionStore reuses the cache's connection.
func NewSessionStore(c *Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{client: c.client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, vehicleID string) (*domain.TrackingSession, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(sessionKeyPrefix+vehicleID).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess domain.TrackingSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.TrackingSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(sessionKeyPrefix + sess.VehicleID).Value(valkey.BinaryString(data)).Ex(s.ttl).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *SessionStore) Delete(ctx context.Context, vehicleID string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(sessionKeyPrefix+vehicleID).Build()).Error()
}
