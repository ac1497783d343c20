package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/session"
)

// newTx acquires session "s1", applies seed as committed state and returns a
// fresh transaction on it.
func newTx(t *testing.T, seed func(s *domain.Session)) (*session.Handle, *session.Tx) {
	t.Helper()

	store := session.NewStore(time.Hour)
	h, err := store.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	t.Cleanup(h.Release)

	if seed != nil {
		tx := h.Begin()
		seed(tx.Session())
		require.NoError(t, tx.Commit(context.Background()))
	}

	return h, h.Begin()
}

func connected(s *domain.Session) {
	s.Connection = &domain.ConnectionRef{ID: "ref-1", Backend: domain.BackendSnowflake}
	s.Database = "SALES"
	s.Schema = "PUBLIC"
}

func count(n int64) *int64 { return &n }

func ordersRef() domain.TableRef {
	return domain.TableRef{Database: "SALES", Schema: "PUBLIC", Name: "ORDERS"}
}

func customersRef() domain.TableRef {
	return domain.TableRef{Database: "SALES", Schema: "PUBLIC", Name: "CUSTOMERS"}
}
