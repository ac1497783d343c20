package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/nl2sql/internal/api/response"
	"github.com/Rrens/nl2sql/internal/domain"
)

// TranscriptReader reads the audit trail.
type TranscriptReader interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.TranscriptEntry, error)
	FrequentQuestions(ctx context.Context, sessionID string, limit int) ([]string, error)
}

type TranscriptHandler struct {
	transcript TranscriptReader
}

func NewTranscriptHandler(transcript TranscriptReader) *TranscriptHandler {
	return &TranscriptHandler{transcript: transcript}
}

// List returns the latest handled messages of a session
func (h *TranscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.transcript.ListBySession(r.Context(), chi.URLParam(r, "sessionID"), limitParam(r, 50))
	if err != nil {
		response.InternalError(w, "failed to list transcript")
		return
	}
	if entries == nil {
		entries = []domain.TranscriptEntry{}
	}
	response.OK(w, entries)
}

// Suggestions returns the questions the session asked most often
func (h *TranscriptHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.transcript.FrequentQuestions(r.Context(), chi.URLParam(r, "sessionID"), limitParam(r, 5))
	if err != nil {
		response.InternalError(w, "failed to load suggestions")
		return
	}
	if questions == nil {
		questions = []string{}
	}
	response.OK(w, questions)
}

func limitParam(r *http.Request, fallback int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			return v
		}
	}
	return fallback
}
