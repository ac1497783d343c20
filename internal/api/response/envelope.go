package response

import (
	"net/http"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/orchestrator"
)

// Envelope writes an orchestrator envelope as the data of a standard response.
// Failures keep the envelope body and pick a status from the error kind.
func Envelope(w http.ResponseWriter, env orchestrator.Envelope) {
	JSON(w, StatusFor(env), env)
}

// StatusFor maps an envelope to an HTTP status.
func StatusFor(env orchestrator.Envelope) int {
	if env.OK() {
		return http.StatusOK
	}

	switch env.ErrorKind {
	case domain.KindSession:
		return http.StatusNotFound
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindNotConnected:
		return http.StatusConflict
	case domain.KindSelectionOutOfRange, domain.KindUnsafeQuery,
		domain.KindDictionaryFormat, domain.KindNoDictionaryLoaded:
		return http.StatusUnprocessableEntity
	case domain.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
