package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/agent"
	"github.com/Rrens/nl2sql/internal/agent/agenttest"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
)

func ordersInfo() *mcp.TableInfo {
	return &mcp.TableInfo{
		Name: "ORDERS", Database: "SALES", Schema: "PUBLIC", RowCount: count(1200),
		Columns: []mcp.ColumnInfo{
			{Name: "ID", DataType: "NUMBER", PrimaryKey: true},
			{Name: "STATUS", DataType: "VARCHAR", Nullable: true, SampleValues: []string{"open", "closed"}},
		},
	}
}

func selectedOrders(s *domain.Session) {
	connected(s)
	s.SelectedTables = []domain.TableRef{ordersRef()}
}

var defaultQueryOpts = mcp.QueryOptions{MaxRows: 1000, Timeout: 30 * time.Second}

func TestQueryAgent_Query(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil).Once()
	adapter.On("ExecuteQuery", mock.Anything, "SELECT COUNT(*) AS N FROM ORDERS", defaultQueryOpts).
		Return(&mcp.QueryResult{Columns: []string{"N"}, Rows: [][]any{{int64(1200)}}, RowCount: 1}, nil)

	lang := &agenttest.MockLanguage{}
	lang.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.SQLRequest) bool {
		return strings.Contains(req.SchemaContext, "CREATE TABLE SALES.PUBLIC.ORDERS") &&
			req.Dialect == "Snowflake SQL" && req.DatabaseType == "snowflake"
	})).Return(&llm.SQLResult{SQL: "SELECT COUNT(*) AS N FROM ORDERS"}, nil)

	cache := agenttest.NewMemoryCache()
	a := agent.NewQueryAgent(liveDatabases(adapter), lang, cache, agent.QueryOptions{})
	ctx := context.Background()
	h, tx := newTx(t, selectedOrders)

	res := a.Query(ctx, tx, "how many orders are there?")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Query returned 1 rows.", res.Message)
	assert.Equal(t, "SELECT COUNT(*) AS N FROM ORDERS", res.SQL)
	require.NotNil(t, res.Data)
	assert.Equal(t, []string{"N"}, res.Data.Columns)
	assert.Equal(t, 1, cache.Len())

	history := h.Session().History
	require.Len(t, history, 1)
	assert.Equal(t, "how many orders are there?", history[0].Question)
	assert.Equal(t, 1, history[0].RowCount)

	res = a.Query(ctx, h.Begin(), "and how many are open?")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Len(t, h.Session().History, 2)
	adapter.AssertNumberOfCalls(t, "DescribeTable", 1)
}

func TestQueryAgent_RejectsUnsafeStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"drop", "DROP TABLE ORDERS"},
		{"delete", "DELETE FROM ORDERS WHERE STATUS = 'closed'"},
		{"update", "UPDATE ORDERS SET STATUS = 'open'"},
		{"insert", "INSERT INTO ORDERS (ID) VALUES (1)"},
		{"alter", "ALTER TABLE ORDERS ADD COLUMN NOTE VARCHAR"},
		{"stacked", "SELECT 1; DROP TABLE ORDERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &agenttest.MockAdapter{}
			adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)

			lang := &agenttest.MockLanguage{}
			lang.On("GenerateSQL", mock.Anything, mock.Anything).Return(&llm.SQLResult{SQL: tt.sql}, nil)

			a := agent.NewQueryAgent(liveDatabases(adapter), lang, nil, agent.QueryOptions{})
			h, tx := newTx(t, selectedOrders)

			res := a.Query(context.Background(), tx, "clean up the orders")
			require.Equal(t, domain.StatusFailure, res.Status)
			assert.Equal(t, domain.KindUnsafeQuery, domain.KindOf(res.Err))
			assert.Equal(t, tt.sql, res.SQL)
			assert.Empty(t, h.Session().History)
			adapter.AssertNotCalled(t, "ExecuteQuery", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestQueryAgent_ExecutionFailureIsExplained(t *testing.T) {
	const sql = "SELECT FOO FROM ORDERS"
	execErr := errors.New("SQL compilation error: invalid identifier 'FOO'")

	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)
	adapter.On("ExecuteQuery", mock.Anything, sql, defaultQueryOpts).Return(nil, execErr)

	lang := &agenttest.MockLanguage{}
	lang.On("GenerateSQL", mock.Anything, mock.Anything).Return(&llm.SQLResult{SQL: sql}, nil)
	lang.On("ExplainError", mock.Anything, "show foo", sql, execErr.Error()).
		Return("ORDERS has no column named FOO.", nil)

	a := agent.NewQueryAgent(liveDatabases(adapter), lang, nil, agent.QueryOptions{ExplainErrors: true})
	h, tx := newTx(t, selectedOrders)

	res := a.Query(context.Background(), tx, "show foo")
	require.Equal(t, domain.StatusFailure, res.Status)
	assert.Equal(t, domain.KindProvider, domain.KindOf(res.Err))
	assert.True(t, errors.Is(res.Err, execErr))
	assert.Equal(t, sql, res.SQL)
	assert.True(t, strings.HasSuffix(res.Message, "\n\nORDERS has no column named FOO."), res.Message)
	assert.Empty(t, h.Session().History)
}

func TestQueryAgent_UsesDictionaryContext(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("ExecuteQuery", mock.Anything, "SELECT ID FROM ORDERS", defaultQueryOpts).
		Return(&mcp.QueryResult{Columns: []string{"ID"}, Rows: [][]any{}, RowCount: 0}, nil)

	lang := &agenttest.MockLanguage{}
	lang.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.SQLRequest) bool {
		return strings.Contains(req.SchemaContext, "Data dictionary") &&
			strings.Contains(req.SchemaContext, "Unique order number")
	})).Return(&llm.SQLResult{SQL: "SELECT ID FROM ORDERS"}, nil)

	a := agent.NewQueryAgent(liveDatabases(adapter), lang, nil, agent.QueryOptions{})
	_, tx := newTx(t, func(s *domain.Session) {
		selectedOrders(s)
		s.Dictionary = &domain.Dictionary{
			Database: "SALES",
			Schema:   "PUBLIC",
			Tables: map[string]*domain.TableEntry{
				"ORDERS": {
					Name: "ORDERS", Database: "SALES", Schema: "PUBLIC",
					Columns: []domain.FieldEntry{{Name: "ID", Type: "NUMBER", Description: "Unique order number"}},
				},
			},
		}
	})

	res := a.Query(context.Background(), tx, "list order ids")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	adapter.AssertNotCalled(t, "DescribeTable", mock.Anything, mock.Anything)
}

func TestQueryAgent_HistoryWindow(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)
	adapter.On("ExecuteQuery", mock.Anything, mock.Anything, mock.Anything).
		Return(&mcp.QueryResult{Columns: []string{"N"}, Rows: [][]any{{1}}, RowCount: 1}, nil)

	lang := &agenttest.MockLanguage{}
	lang.On("GenerateSQL", mock.Anything, mock.MatchedBy(func(req llm.SQLRequest) bool {
		return len(req.History) == 3 && req.History[0].Question == "q7"
	})).Return(&llm.SQLResult{SQL: "SELECT 1 AS N"}, nil)

	a := agent.NewQueryAgent(liveDatabases(adapter), lang, nil, agent.QueryOptions{HistoryWindow: 3, HistoryLimit: 4})
	h, tx := newTx(t, func(s *domain.Session) {
		selectedOrders(s)
		for _, q := range []string{"q1", "q2", "q3", "q4", "q5", "q6", "q7"} {
			s.PushHistory(domain.QueryRecord{Question: q, SQL: "SELECT 1"}, 0)
		}
	})

	res := a.Query(context.Background(), tx, "q8")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)

	history := h.Session().History
	require.Len(t, history, 4)
	assert.Equal(t, "q8", history[0].Question)
	assert.Equal(t, "q5", history[3].Question)
}

func TestQueryAgent_Failures(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		a := agent.NewQueryAgent(&agenttest.MockDatabases{}, &agenttest.MockLanguage{}, nil, agent.QueryOptions{})
		_, tx := newTx(t, selectedOrders)
		res := a.Query(context.Background(), tx, "   ")
		assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(res.Err))
	})

	t.Run("not connected", func(t *testing.T) {
		a := agent.NewQueryAgent(&agenttest.MockDatabases{}, &agenttest.MockLanguage{}, nil, agent.QueryOptions{})
		_, tx := newTx(t, nil)
		res := a.Query(context.Background(), tx, "how many orders?")
		assert.Equal(t, domain.KindNotConnected, domain.KindOf(res.Err))
	})

	t.Run("metadata failure", func(t *testing.T) {
		adapter := &agenttest.MockAdapter{}
		adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(nil, errors.New("warehouse suspended"))
		lang := &agenttest.MockLanguage{}

		a := agent.NewQueryAgent(liveDatabases(adapter), lang, nil, agent.QueryOptions{})
		_, tx := newTx(t, selectedOrders)
		res := a.Query(context.Background(), tx, "how many orders?")

		var pe *domain.ProviderError
		require.True(t, errors.As(res.Err, &pe))
		assert.Equal(t, "fetch_metadata", pe.Op)
		lang.AssertNotCalled(t, "GenerateSQL", mock.Anything, mock.Anything)
	})

	t.Run("empty schema", func(t *testing.T) {
		adapter := &agenttest.MockAdapter{}
		adapter.On("ListTables", mock.Anything, "SALES", "PUBLIC").Return([]mcp.TableSummary{}, nil)

		a := agent.NewQueryAgent(liveDatabases(adapter), &agenttest.MockLanguage{}, nil, agent.QueryOptions{})
		_, tx := newTx(t, connected)
		res := a.Query(context.Background(), tx, "how many orders?")
		assert.Equal(t, domain.KindProvider, domain.KindOf(res.Err))
		assert.Contains(t, res.Message, "no tables found in SALES.PUBLIC")
	})
}
