// Package response writes the JSON bodies of the HTTP API.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// Response is the outer body of every API reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a request that was refused before reaching a session.
type ErrorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one request field that failed validation.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Error writes an error body. The code is derived from the status text.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Response{Error: &ErrorBody{
		Code:    codeFor(status),
		Message: message,
	}})
}

// Invalid writes a 400 for a request that failed struct validation, listing
// the offending fields when err carries them.
func Invalid(w http.ResponseWriter, err error) {
	body := &ErrorBody{Code: codeFor(http.StatusBadRequest), Message: "invalid request"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			body.Fields = append(body.Fields, FieldError{
				Field: strings.ToLower(fe.Field()),
				Rule:  fe.Tag(),
			})
		}
	} else if err != nil {
		body.Message = err.Error()
	}

	write(w, http.StatusBadRequest, Response{Error: body})
}

func codeFor(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Created(w http.ResponseWriter, data any) { JSON(w, http.StatusCreated, data) }
func OK(w http.ResponseWriter, data any) { JSON(w, http.StatusOK, data) }

func BadRequest(w http.ResponseWriter, message string) { Error(w, http.StatusBadRequest, message) }
func Unauthorized(w http.ResponseWriter, message string) { Error(w, http.StatusUnauthorized, message) }
func Forbidden(w http.ResponseWriter, message string) { Error(w, http.StatusForbidden, message) }
func NotFound(w http.ResponseWriter, message string) { Error(w, http.StatusNotFound, message) }

func TooManyRequests(w http.ResponseWriter, message string) {
	Error(w, http.StatusTooManyRequests, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

func ServiceUnavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, message)
}
