package domain

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptEntry is one handled message and the outcome sent back.
type TranscriptEntry struct {
	ID               uuid.UUID    `json:"id"`
	SessionID        string       `json:"session_id"`
	Message          string       `json:"message"`
	Intent           IntentKind   `json:"intent"`
	Status           ResultStatus `json:"status"`
	Response         string       `json:"response"`
	SQL              string       `json:"sql,omitempty"`
	ErrorKind        ErrorKind    `json:"error_kind,omitempty"`
	UsedDefaultRoute bool         `json:"used_default_route"`
	LatencyMs        int64        `json:"latency_ms"`
	CreatedAt        time.Time    `json:"created_at"`
}
