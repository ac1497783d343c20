package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/agent"
	"github.com/Rrens/nl2sql/internal/agent/agenttest"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
)

func liveDatabases(adapter mcp.Adapter) *agenttest.MockDatabases {
	dbs := &agenttest.MockDatabases{}
	dbs.On("Adapter", mock.Anything, "ref-1").Return(adapter, nil)
	return dbs
}

func tableListing(s *domain.Session) {
	connected(s)
	s.LastListing = &domain.Listing{
		Kind:     domain.ListingTables,
		Database: "SALES",
		Schema:   "PUBLIC",
		Items: []domain.ListingItem{
			{Name: "CUSTOMERS", Database: "SALES", Schema: "PUBLIC"},
			{Name: "ORDERS", Database: "SALES", Schema: "PUBLIC"},
		},
	}
}

func TestExplorationAgent_RequiresConnection(t *testing.T) {
	dbs := &agenttest.MockDatabases{}
	a := agent.NewExplorationAgent(dbs)
	ctx := context.Background()

	for name, run := range map[string]func() domain.AgentResult{
		"databases": func() domain.AgentResult { _, tx := newTx(t, nil); return a.ListDatabases(ctx, tx) },
		"schemas":   func() domain.AgentResult { _, tx := newTx(t, nil); return a.ListSchemas(ctx, tx, "") },
		"tables":    func() domain.AgentResult { _, tx := newTx(t, nil); return a.ListTables(ctx, tx, "", "") },
		"select": func() domain.AgentResult {
			_, tx := newTx(t, nil)
			return a.SelectTables(ctx, tx, agent.Selection{Positions: []int{1}})
		},
	} {
		t.Run(name, func(t *testing.T) {
			res := run()
			require.Equal(t, domain.StatusFailure, res.Status)
			assert.True(t, errors.Is(res.Err, domain.ErrNotConnected))
		})
	}
	dbs.AssertNotCalled(t, "Adapter", mock.Anything, mock.Anything)
}

func TestExplorationAgent_ListDatabases(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("ListDatabases", mock.Anything).Return([]string{"SALES", "MARKETING"}, nil)

	a := agent.NewExplorationAgent(liveDatabases(adapter))
	h, tx := newTx(t, connected)

	res := a.ListDatabases(context.Background(), tx)
	require.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, "Found 2 databases.", res.Message)
	assert.Equal(t, []string{"#", "database"}, res.Data.Columns)
	assert.Equal(t, []any{2, "MARKETING"}, res.Data.Rows[1])

	listing := h.Session().LastListing
	require.NotNil(t, listing)
	assert.Equal(t, domain.ListingDatabases, listing.Kind)
	assert.Len(t, listing.Items, 2)
}

func TestExplorationAgent_ListSchemasChangesDatabase(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("ListSchemas", mock.Anything, "MARKETING").Return([]string{"PUBLIC", "STAGING"}, nil)

	a := agent.NewExplorationAgent(liveDatabases(adapter))
	h, tx := newTx(t, connected)

	res := a.ListSchemas(context.Background(), tx, "MARKETING")
	require.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, "Found 2 schemas in MARKETING.", res.Message)

	s := h.Session()
	assert.Equal(t, "MARKETING", s.Database)
	assert.Empty(t, s.Schema)
}

func TestExplorationAgent_ListThenSelect(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("ListTables", mock.Anything, "SALES", "PUBLIC").Return([]mcp.TableSummary{
		{Name: "CUSTOMERS", Database: "SALES", Schema: "PUBLIC", Kind: "TABLE", RowCount: count(3)},
		{Name: "ORDERS", Database: "SALES", Schema: "PUBLIC", Kind: "TABLE", RowCount: count(1200)},
		{Name: "RETURNS", Database: "SALES", Schema: "PUBLIC", Kind: "TABLE"},
	}, nil)

	a := agent.NewExplorationAgent(liveDatabases(adapter))
	ctx := context.Background()
	h, tx := newTx(t, connected)

	res := a.ListTables(ctx, tx, "", "")
	require.Equal(t, domain.StatusSuccess, res.Status)
	assert.Contains(t, res.Message, "Found 3 tables in SALES.PUBLIC")
	assert.Equal(t, []any{2, "ORDERS", "TABLE", int64(1200)}, res.Data.Rows[1])
	assert.Equal(t, []any{3, "RETURNS", "TABLE", nil}, res.Data.Rows[2])

	res = a.SelectTables(ctx, h.Begin(), agent.Selection{Positions: []int{1, 2}})
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Selected 2 tables: SALES.PUBLIC.CUSTOMERS, SALES.PUBLIC.ORDERS.", res.Message)
	assert.Equal(t, []domain.TableRef{customersRef(), ordersRef()}, h.Session().SelectedTables)
}

func TestExplorationAgent_SelectOutOfRangeKeepsSelection(t *testing.T) {
	a := agent.NewExplorationAgent(liveDatabases(&agenttest.MockAdapter{}))
	h, tx := newTx(t, func(s *domain.Session) {
		tableListing(s)
		s.SelectedTables = []domain.TableRef{ordersRef()}
	})

	res := a.SelectTables(context.Background(), tx, agent.Selection{Positions: []int{1, 5}})
	require.Equal(t, domain.StatusFailure, res.Status)

	var rangeErr *domain.SelectionOutOfRangeError
	require.True(t, errors.As(res.Err, &rangeErr))
	assert.Equal(t, 5, rangeErr.Position)
	assert.Equal(t, 2, rangeErr.Available)

	assert.Equal(t, []domain.TableRef{ordersRef()}, h.Session().SelectedTables)
}

func TestExplorationAgent_SelectWithoutListing(t *testing.T) {
	a := agent.NewExplorationAgent(liveDatabases(&agenttest.MockAdapter{}))
	_, tx := newTx(t, connected)

	res := a.SelectTables(context.Background(), tx, agent.Selection{Positions: []int{1}})
	require.Equal(t, domain.StatusFailure, res.Status)
	assert.Equal(t, domain.KindSelectionOutOfRange, domain.KindOf(res.Err))
	assert.Contains(t, res.Message, "no tables have been listed")
}

func TestExplorationAgent_SelectByNameAndAll(t *testing.T) {
	a := agent.NewExplorationAgent(liveDatabases(&agenttest.MockAdapter{}))

	t.Run("names", func(t *testing.T) {
		h, tx := newTx(t, tableListing)
		res := a.SelectTables(context.Background(), tx, agent.Selection{
			Names: []string{"orders", "MARKETING.WEB.VISITS", "ORDERS"},
		})
		require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
		assert.Equal(t, []domain.TableRef{
			ordersRef(),
			{Database: "MARKETING", Schema: "WEB", Name: "VISITS"},
		}, h.Session().SelectedTables)
	})

	t.Run("unlisted bare name", func(t *testing.T) {
		h, tx := newTx(t, func(s *domain.Session) {
			tableListing(s)
			s.SelectedTables = []domain.TableRef{ordersRef()}
		})
		res := a.SelectTables(context.Background(), tx, agent.Selection{
			Names: []string{"ORDERS", "yesterday"},
		})
		require.Equal(t, domain.StatusFailure, res.Status)
		assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(res.Err))
		assert.Contains(t, res.Message, `"yesterday"`)
		assert.Equal(t, []domain.TableRef{ordersRef()}, h.Session().SelectedTables)
	})

	t.Run("bare name without listing", func(t *testing.T) {
		_, tx := newTx(t, connected)
		res := a.SelectTables(context.Background(), tx, agent.Selection{Names: []string{"ORDERS"}})
		assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(res.Err))
	})

	t.Run("all", func(t *testing.T) {
		h, tx := newTx(t, tableListing)
		res := a.SelectTables(context.Background(), tx, agent.Selection{All: true})
		require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
		assert.Len(t, h.Session().SelectedTables, 2)
	})

	t.Run("empty", func(t *testing.T) {
		_, tx := newTx(t, tableListing)
		res := a.SelectTables(context.Background(), tx, agent.Selection{})
		assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(res.Err))
	})
}

func TestExplorationAgent_DescribeTable(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(&mcp.TableInfo{
		Name: "ORDERS", Database: "SALES", Schema: "PUBLIC", RowCount: count(1200),
		Columns: []mcp.ColumnInfo{
			{Name: "ID", DataType: "NUMBER", PrimaryKey: true, SampleValues: []string{"1", "2"}},
			{Name: "STATUS", DataType: "VARCHAR", Nullable: true, SampleValues: []string{"open"}},
		},
	}, nil)

	a := agent.NewExplorationAgent(liveDatabases(adapter))
	_, tx := newTx(t, connected)

	res := a.DescribeTable(context.Background(), tx, "ORDERS")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "SALES.PUBLIC.ORDERS has 2 columns and 1200 rows.", res.Message)
	assert.Equal(t, []any{"ID", "NUMBER", false, true, "", "1, 2"}, res.Data.Rows[0])
}

func TestExplorationAgent_DescribeTableRequiresName(t *testing.T) {
	a := agent.NewExplorationAgent(liveDatabases(&agenttest.MockAdapter{}))
	_, tx := newTx(t, connected)

	res := a.DescribeTable(context.Background(), tx, "  ")
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(res.Err))
}
