package orchestrator

import (
	"github.com/Rrens/nl2sql/internal/domain"
)

// Envelope is the caller-facing response shared by every front end.
type Envelope struct {
	Status           domain.ResultStatus `json:"status"`
	Message          string              `json:"message"`
	SQL              string              `json:"sql,omitempty"`
	Data             *domain.Table       `json:"data,omitempty"`
	Dictionary       *domain.Dictionary  `json:"dictionary,omitempty"`
	UsedDefaultRoute bool                `json:"usedDefaultRoute"`
	SessionID        string              `json:"sessionId"`
	Intent           domain.IntentKind   `json:"intent"`
	ErrorKind        domain.ErrorKind    `json:"errorKind,omitempty"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// OK reports whether the call succeeded, fully or partially.
func (e Envelope) OK() bool {
	return e.Status != domain.StatusFailure
}

// Normalize wraps an agent result into an envelope. Agent errors pass through
// unchanged; only their kind is derived.
func Normalize(sessionID string, intent domain.IntentKind, res domain.AgentResult, usedDefaultRoute bool) Envelope {
	env := Envelope{
		Status:           res.Status,
		Message:          res.Message,
		SQL:              res.SQL,
		Data:             res.Data,
		Dictionary:       res.Dictionary,
		UsedDefaultRoute: usedDefaultRoute,
		SessionID:        sessionID,
		Intent:           intent,
		Warnings:         res.Warnings,
	}

	if res.Err != nil {
		env.Status = domain.StatusFailure
		env.ErrorKind = domain.KindOf(res.Err)
		if env.Message == "" {
			env.Message = res.Err.Error()
		}
	}

	switch {
	case env.Status == "":
		env.Status = domain.StatusFailure
		env.ErrorKind = domain.KindProvider
		env.Message = "The request produced no result."
	case env.Message == "" && env.Status == domain.StatusFailure:
		env.Message = "The request failed."
	case env.Message == "":
		env.Message = "Done."
	}

	return env
}
