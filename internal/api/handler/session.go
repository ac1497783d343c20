package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/nl2sql/internal/api/response"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/security"
	"github.com/Rrens/nl2sql/internal/session"
)

// SessionResponse is returned when a session is created or restored.
type SessionResponse struct {
	SessionID string     `json:"session_id"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type SessionHandler struct {
	orch   Orchestrator
	tokens *security.TokenManager
}

func NewSessionHandler(orch Orchestrator, tokens *security.TokenManager) *SessionHandler {
	return &SessionHandler{orch: orch, tokens: tokens}
}

// Create opens a new empty session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.orch.NewSession(r.Context())
	if err != nil {
		response.InternalError(w, "failed to create session")
		return
	}

	resp, err := h.issue(id)
	if err != nil {
		log.Error().Err(err).Str("session_id", id).Msg("failed to issue session token")
		response.InternalError(w, "failed to issue session token")
		return
	}
	response.Created(w, resp)
}

// Get returns the committed state of a session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := h.orch.Snapshot(id)
	if !ok {
		response.NotFound(w, "session not found")
		return
	}
	response.OK(w, sess)
}

// End tears a session down and releases its connection
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.orch.EndSession(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	response.NoContent(w)
}

// Save persists the session to the snapshot store
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.orch.Save(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	response.OK(w, map[string]any{"session_id": id, "saved": true})
}

// Restore reloads a saved session
func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.orch.Restore(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	resp, err := h.issue(sess.ID)
	if err != nil {
		response.InternalError(w, "failed to issue session token")
		return
	}
	response.OK(w, resp)
}

func (h *SessionHandler) issue(id string) (SessionResponse, error) {
	resp := SessionResponse{SessionID: id}
	if h.tokens == nil || !h.tokens.Enabled() {
		return resp, nil
	}

	token, expiresAt, err := h.tokens.Issue(id)
	if err != nil {
		return resp, err
	}
	resp.Token = token
	resp.ExpiresAt = &expiresAt
	return resp, nil
}

func writeSessionError(w http.ResponseWriter, err error) {
	var sessErr *domain.SessionError
	switch {
	case errors.As(err, &sessErr):
		response.NotFound(w, sessErr.Error())
	case errors.Is(err, session.ErrNoSnapshotter):
		response.Error(w, http.StatusNotImplemented, err.Error())
	default:
		log.Error().Err(err).Msg("session operation failed")
		response.InternalError(w, err.Error())
	}
}
