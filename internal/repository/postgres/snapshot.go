package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/security"
)

// SnapshotRepository stores encrypted session snapshots.
type SnapshotRepository struct {
	db  DBTX
	enc *security.Encryptor
	ttl time.Duration
	now func() time.Time
}

var _ domain.Snapshotter = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a snapshot repository. A zero ttl never expires snapshots.
func NewSnapshotRepository(db DBTX, enc *security.Encryptor, ttl time.Duration) *SnapshotRepository {
	return &SnapshotRepository{db: db, enc: enc, ttl: ttl, now: time.Now}
}

// SaveSnapshot upserts the sealed session.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, sess *domain.Session) error {
	payload, err := r.enc.Seal(sess)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	now := r.now()
	var expiresAt *time.Time
	if r.ttl > 0 {
		t := now.Add(r.ttl)
		expiresAt = &t
	}

	query := `
		INSERT INTO session_snapshots (session_id, payload, saved_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.Exec(ctx, query, sess.ID, payload, now, expiresAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil, nil when no live snapshot exists.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT payload
		FROM session_snapshots
		WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > $2)
	`
	var payload []byte
	err := r.db.QueryRow(ctx, query, id, r.now()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess domain.Session
	if err := r.enc.Open(payload, &sess); err != nil {
		return nil, fmt.Errorf("failed to open session snapshot: %w", err)
	}
	return &sess, nil
}

// DeleteExpired removes snapshots past their expiry.
func (r *SnapshotRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM session_snapshots WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
