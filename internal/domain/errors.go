package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable, caller-facing name of an error class.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindSession             ErrorKind = "session_error"
	KindNotConnected        ErrorKind = "not_connected"
	KindSelectionOutOfRange ErrorKind = "selection_out_of_range"
	KindUnsafeQuery         ErrorKind = "unsafe_query"
	KindDictionaryFormat    ErrorKind = "dictionary_format"
	KindNoDictionaryLoaded  ErrorKind = "no_dictionary_loaded"
	KindProvider            ErrorKind = "provider_error"
	KindInvalidRequest      ErrorKind = "invalid_request"
)

var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("not connected to a database, connect first")

	// ErrStaleConnection marks a connection reference that no longer points at a live connection.
	ErrStaleConnection = fmt.Errorf("%w: the previous connection is no longer valid", ErrNotConnected)

	// ErrNoDictionaryLoaded is returned by save when the session holds no dictionary.
	ErrNoDictionaryLoaded = errors.New("no data dictionary loaded")

	// ErrNoTablesSelected is returned when an operation needs a table scope and none was given.
	ErrNoTablesSelected = errors.New("no tables selected, list tables and select some first")

	// ErrInvalidRequest marks caller input that could not be interpreted.
	ErrInvalidRequest = errors.New("invalid request")
)

// SessionError reports a malformed or expired session id.
type SessionError struct {
	SessionID string
	Reason    string
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return "session error: " + e.Reason
	}
	return fmt.Sprintf("session %q: %s", e.SessionID, e.Reason)
}

// SelectionOutOfRangeError reports a positional reference past the end of the last listing.
type SelectionOutOfRangeError struct {
	Position  int
	Available int
}

func (e *SelectionOutOfRangeError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("cannot select position %d: no tables have been listed yet", e.Position)
	}
	return fmt.Sprintf("position %d is out of range, the last listing has %d entries", e.Position, e.Available)
}

// UnsafeQueryError carries a statement rejected by the local read-only check.
type UnsafeQueryError struct {
	SQL    string
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return "unsafe query rejected: " + e.Reason
}

// DictionaryFormatError reports a dictionary document with the wrong structure.
type DictionaryFormatError struct {
	Source string
	Reason string
}

func (e *DictionaryFormatError) Error() string {
	if e.Source == "" {
		return "invalid dictionary document: " + e.Reason
	}
	return fmt.Sprintf("invalid dictionary document %s: %s", e.Source, e.Reason)
}

// ProviderError wraps a failure surfaced by an external capability provider.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it already belongs to the taxonomy.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindProvider {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// KindOf classifies err. Errors outside the taxonomy count as provider errors
// since every other kind is raised locally.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		sessionErr   *SessionError
		selectionErr *SelectionOutOfRangeError
		unsafeErr    *UnsafeQueryError
		formatErr    *DictionaryFormatError
	)

	switch {
	case errors.As(err, &sessionErr):
		return KindSession
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.As(err, &selectionErr):
		return KindSelectionOutOfRange
	case errors.As(err, &unsafeErr):
		return KindUnsafeQuery
	case errors.As(err, &formatErr):
		return KindDictionaryFormat
	case errors.Is(err, ErrNoDictionaryLoaded):
		return KindNoDictionaryLoaded
	case errors.Is(err, ErrNoTablesSelected), errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	default:
		return KindProvider
	}
}
