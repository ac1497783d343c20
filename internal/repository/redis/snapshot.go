package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/security"
)

const snapshotPrefix = "nl2sql:session:"

// SnapshotStore keeps encrypted session snapshots in Redis.
type SnapshotStore struct {
	client *Client
	enc    *security.Encryptor
	ttl    time.Duration
}

var _ domain.Snapshotter = (*SnapshotStore)(nil)

// NewSnapshotStore creates a snapshot store. A zero ttl keeps snapshots forever.
func NewSnapshotStore(client *Client, enc *security.Encryptor, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, enc: enc, ttl: ttl}
}

// SaveSnapshot seals and stores the session.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, sess *domain.Session) error {
	data, err := s.enc.Seal(sess)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}
	if err := s.client.rdb.Set(ctx, snapshotPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil, nil when no snapshot exists.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.rdb.Get(ctx, snapshotPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess domain.Session
	if err := s.enc.Open(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to open session snapshot: %w", err)
	}
	return &sess, nil
}

// DeleteSnapshot removes a saved session.
func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, id string) error {
	return s.client.rdb.Del(ctx, snapshotPrefix+id).Err()
}
