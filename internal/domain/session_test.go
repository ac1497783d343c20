package domain_test

import (
	"testing"
	"time"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_PushHistory(t *testing.T) {
	s := domain.NewSession("s1", time.Now())

	for i := 1; i <= 4; i++ {
		s.PushHistory(domain.QueryRecord{Question: string(rune('a' + i - 1)), RowCount: i}, 3)
	}

	require.Len(t, s.History, 3)
	assert.Equal(t, "d", s.History[0].Question, "most recent entry first")
	assert.Equal(t, "b", s.History[2].Question, "oldest entry evicted")
	assert.Len(t, s.RecentHistory(2), 2)
	assert.Len(t, s.RecentHistory(10), 3)
}

func TestSession_CloneIsIndependent(t *testing.T) {
	s := domain.NewSession("s1", time.Now())
	s.Connection = &domain.ConnectionRef{ID: "c1", Backend: domain.BackendSnowflake}
	s.SelectedTables = []domain.TableRef{{Name: "ORDERS"}}
	s.Preferences["format"] = "table"
	s.Dictionary = &domain.Dictionary{Tables: map[string]*domain.TableEntry{
		"ORDERS": {Name: "ORDERS", Columns: []domain.FieldEntry{{Name: "ID"}}},
	}}
	s.PushHistory(domain.QueryRecord{SQL: "SELECT 1", Sample: [][]any{{1}}}, 5)

	c := s.Clone()
	c.Connection.ID = "c2"
	c.SelectedTables[0].Name = "CUSTOMERS"
	c.Preferences["format"] = "json"
	c.Dictionary.Tables["ORDERS"].Columns[0].Description = "changed"
	c.History[0].Sample[0][0] = 2

	assert.Equal(t, "c1", s.Connection.ID)
	assert.Equal(t, "ORDERS", s.SelectedTables[0].Name)
	assert.Equal(t, "table", s.Preferences["format"])
	assert.Empty(t, s.Dictionary.Tables["ORDERS"].Columns[0].Description)
	assert.Equal(t, 1, s.History[0].Sample[0][0])
}

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want domain.TableRef
	}{
		{"bare", "orders", domain.TableRef{Database: "DB", Schema: "PUBLIC", Name: "orders"}},
		{"schema qualified", "sales.orders", domain.TableRef{Database: "DB", Schema: "sales", Name: "orders"}},
		{"fully qualified", "X.sales.orders", domain.TableRef{Database: "X", Schema: "sales", Name: "orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.ParseTableRef(tt.in, "DB", "PUBLIC")
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "X.sales.orders", domain.TableRef{Database: "X", Schema: "sales", Name: "orders"}.String())
	assert.Equal(t, "orders", domain.TableRef{Name: "orders"}.String())
}

func TestConnectionDescriptor_Merge(t *testing.T) {
	defaults := domain.ConnectionDescriptor{
		Backend:   domain.BackendSnowflake,
		Account:   "acme",
		User:      "svc",
		Password:  "secret",
		Warehouse: "WH",
	}

	merged := defaults.Merge(&domain.ConnectionDescriptor{User: "alice", Database: "SALES"})

	assert.Equal(t, domain.BackendSnowflake, merged.Backend)
	assert.Equal(t, "alice", merged.User)
	assert.Equal(t, "SALES", merged.Database)
	assert.Equal(t, "WH", merged.Warehouse)
	assert.Equal(t, "secret", merged.Password)
	assert.Empty(t, merged.Redacted().Password)
	assert.Equal(t, defaults, defaults.Merge(nil))
}
