package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/orchestrator"
)

var validate = validator.New()

// Orchestrator is the session-scoped entry point the handlers drive.
type Orchestrator interface {
	Handle(ctx context.Context, sessionID, message string) orchestrator.Envelope
	Connect(ctx context.Context, sessionID string, creds *domain.ConnectionDescriptor) orchestrator.Envelope
	LoadDictionary(ctx context.Context, sessionID, source string) orchestrator.Envelope
	SaveDictionary(ctx context.Context, sessionID, destination string) orchestrator.Envelope
	NewSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	Snapshot(sessionID string) (*domain.Session, bool)
	Save(ctx context.Context, sessionID string) error
	Restore(ctx context.Context, sessionID string) (*domain.Session, error)
}

var _ Orchestrator = (*orchestrator.Orchestrator)(nil)

// decodeOptional decodes a JSON body into v. An empty body is not an error.
func decodeOptional(r *http.Request, v any) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
