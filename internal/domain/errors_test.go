package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.KindNone},
		{"session", &domain.SessionError{SessionID: "x", Reason: "expired"}, domain.KindSession},
		{"not connected", domain.ErrNotConnected, domain.KindNotConnected},
		{"stale connection", domain.ErrStaleConnection, domain.KindNotConnected},
		{"selection", &domain.SelectionOutOfRangeError{Position: 4, Available: 2}, domain.KindSelectionOutOfRange},
		{"unsafe", &domain.UnsafeQueryError{SQL: "DROP TABLE x", Reason: "DDL"}, domain.KindUnsafeQuery},
		{"format", &domain.DictionaryFormatError{Reason: "missing tables"}, domain.KindDictionaryFormat},
		{"no dictionary", domain.ErrNoDictionaryLoaded, domain.KindNoDictionaryLoaded},
		{"no tables", domain.ErrNoTablesSelected, domain.KindInvalidRequest},
		{"wrapped", fmt.Errorf("failed to list: %w", domain.ErrNotConnected), domain.KindNotConnected},
		{"raw", errors.New("connection reset"), domain.KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.KindOf(tt.err))
		})
	}
}

func TestNewProviderError(t *testing.T) {
	raw := errors.New("timeout")

	err := domain.NewProviderError("snowflake", "execute_query", raw)
	var pe *domain.ProviderError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "snowflake", pe.Provider)
	assert.ErrorIs(t, err, raw)

	assert.Same(t, domain.ErrNotConnected, domain.NewProviderError("x", "y", domain.ErrNotConnected))
	assert.Equal(t, err, domain.NewProviderError("other", "op", err))
	assert.NoError(t, domain.NewProviderError("x", "y", nil))
}
