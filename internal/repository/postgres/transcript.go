package postgres

import (
	"context"
	"fmt"

	"github.com/Rrens/nl2sql/internal/domain"
)

// TranscriptRepository keeps the audit trail of handled messages.
type TranscriptRepository struct {
	db DBTX
}

var _ domain.TranscriptRecorder = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(db DBTX) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Record inserts one entry.
func (r *TranscriptRepository) Record(ctx context.Context, e *domain.TranscriptEntry) error {
	query := `
		INSERT INTO transcript_entries
			(id, session_id, message, intent, status, response, sql, error_kind, used_default_route, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.SessionID,
		e.Message,
		string(e.Intent),
		string(e.Status),
		e.Response,
		e.SQL,
		string(e.ErrorKind),
		e.UsedDefaultRoute,
		e.LatencyMs,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transcript entry: %w", err)
	}
	return nil
}

// ListBySession returns the latest entries of a session, oldest first.
func (r *TranscriptRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.TranscriptEntry, error) {
	query := `
		SELECT id, session_id, message, intent, status, response, sql, error_kind, used_default_route, latency_ms, created_at
		FROM transcript_entries
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	defer rows.Close()

	var entries []domain.TranscriptEntry
	for rows.Next() {
		var e domain.TranscriptEntry
		var intent, status, errorKind string
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.Message,
			&intent,
			&status,
			&e.Response,
			&e.SQL,
			&errorKind,
			&e.UsedDefaultRoute,
			&e.LatencyMs,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript entry: %w", err)
		}
		e.Intent = domain.IntentKind(intent)
		e.Status = domain.ResultStatus(status)
		e.ErrorKind = domain.ErrorKind(errorKind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// FrequentQuestions returns the query messages a session asked most often.
func (r *TranscriptRepository) FrequentQuestions(ctx context.Context, sessionID string, limit int) ([]string, error) {
	query := `
		SELECT message
		FROM transcript_entries
		WHERE session_id = $1 AND intent = $2 AND status = $3
		GROUP BY message
		ORDER BY COUNT(*) DESC
		LIMIT $4
	`
	rows, err := r.db.Query(ctx, query, sessionID, string(domain.IntentQuery), string(domain.StatusSuccess), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent questions: %w", err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
