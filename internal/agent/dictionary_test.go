package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/agent"
	"github.com/Rrens/nl2sql/internal/agent/agenttest"
	"github.com/Rrens/nl2sql/internal/docstore"
	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
)

func customersInfo() *mcp.TableInfo {
	return &mcp.TableInfo{
		Name: "CUSTOMERS", Database: "SALES", Schema: "PUBLIC", RowCount: count(3),
		Columns: []mcp.ColumnInfo{
			{Name: "ID", DataType: "NUMBER", PrimaryKey: true},
			{Name: "EMAIL", DataType: "VARCHAR", Description: "Login email"},
		},
	}
}

func forTable(name string) any {
	return mock.MatchedBy(func(req llm.DescribeRequest) bool { return req.Table == name })
}

func newDictionaryAgent(adapter *agenttest.MockAdapter, lang *agenttest.MockLanguage) *agent.DictionaryAgent {
	docs := docstore.NewFileStoreWithFs(afero.NewMemMapFs())
	return agent.NewDictionaryAgent(liveDatabases(adapter), lang, docs, agent.DictionaryOptions{})
}

func TestDictionaryAgent_GeneratePartial(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)
	adapter.On("DescribeTable", mock.Anything, customersRef()).Return(customersInfo(), nil)

	lang := &agenttest.MockLanguage{}
	lang.On("DescribeFields", mock.Anything, forTable("SALES.PUBLIC.ORDERS")).Return(map[string]llm.FieldDescription{
		"id":     {Description: "Unique order number", Category: "identifier"},
		"status": {Description: "Fulfilment state", Category: "dimension", BusinessRules: []string{"open or closed"}},
	}, nil)
	lang.On("DescribeFields", mock.Anything, forTable("SALES.PUBLIC.CUSTOMERS")).
		Return(nil, errors.New("rate limited"))

	a := newDictionaryAgent(adapter, lang)
	h, tx := newTx(t, func(s *domain.Session) {
		connected(s)
		s.SelectedTables = []domain.TableRef{ordersRef(), customersRef()}
	})

	res := a.Generate(context.Background(), tx, nil)
	require.Equal(t, domain.StatusPartial, res.Status, res.Message)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "SALES.PUBLIC.CUSTOMERS")
	assert.Contains(t, res.Warnings[0], "rate limited")

	require.NotNil(t, res.Dictionary)
	require.Len(t, res.Dictionary.Tables, 2)

	orders := res.Dictionary.Tables["ORDERS"]
	require.NotNil(t, orders)
	assert.Equal(t, "Unique order number", orders.Columns[0].Description)
	assert.Equal(t, []string{"open or closed"}, orders.Columns[1].BusinessRules)
	assert.Equal(t, []string{"open", "closed"}, orders.Columns[1].SampleValues)

	customers := res.Dictionary.Tables["CUSTOMERS"]
	require.NotNil(t, customers)
	assert.Equal(t, domain.DescriptionUnavailable, customers.Columns[0].Description)
	assert.Equal(t, "Login email", customers.Columns[1].Description)

	stored := h.Session().Dictionary
	require.NotNil(t, stored)
	assert.Equal(t, "SALES", stored.Database)
	assert.Len(t, stored.Tables, 2)
}

func TestDictionaryAgent_GenerateNamedTables(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)

	lang := &agenttest.MockLanguage{}
	lang.On("DescribeFields", mock.Anything, forTable("SALES.PUBLIC.ORDERS")).Return(map[string]llm.FieldDescription{
		"id":     {Description: "Unique order number"},
		"status": {Description: "Fulfilment state"},
	}, nil)

	a := newDictionaryAgent(adapter, lang)
	h, tx := newTx(t, connected)

	res := a.Generate(context.Background(), tx, []string{"ORDERS"})
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Generated data dictionary for 1 tables (SALES.PUBLIC.ORDERS).", res.Message)
	assert.Empty(t, h.Session().SelectedTables)
}

func TestDictionaryAgent_GenerateSameNameInTwoSchemas(t *testing.T) {
	eu := domain.TableRef{Database: "SALES", Schema: "EU", Name: "ORDERS"}
	us := domain.TableRef{Database: "SALES", Schema: "US", Name: "ORDERS"}
	info := func(ref domain.TableRef) *mcp.TableInfo {
		return &mcp.TableInfo{
			Name: ref.Name, Database: ref.Database, Schema: ref.Schema,
			Columns: []mcp.ColumnInfo{{Name: "ID", DataType: "NUMBER"}},
		}
	}

	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, eu).Return(info(eu), nil)
	adapter.On("DescribeTable", mock.Anything, us).Return(info(us), nil)

	lang := &agenttest.MockLanguage{}
	lang.On("DescribeFields", mock.Anything, forTable("SALES.EU.ORDERS")).
		Return(map[string]llm.FieldDescription{"id": {Description: "EU order"}}, nil)
	lang.On("DescribeFields", mock.Anything, forTable("SALES.US.ORDERS")).
		Return(map[string]llm.FieldDescription{"id": {Description: "US order"}}, nil)

	a := newDictionaryAgent(adapter, lang)
	h, tx := newTx(t, connected)

	res := a.Generate(context.Background(), tx, []string{"SALES.EU.ORDERS", "SALES.US.ORDERS", "sales.eu.orders"})
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Contains(t, res.Message, "for 2 tables")

	require.Len(t, res.Dictionary.Tables, 2)
	assert.Equal(t, "EU order", res.Dictionary.Tables["SALES.EU.ORDERS"].Columns[0].Description)
	assert.Equal(t, "US order", res.Dictionary.Tables["SALES.US.ORDERS"].Columns[0].Description)
	assert.Len(t, h.Session().Dictionary.Tables, 2)
	adapter.AssertNumberOfCalls(t, "DescribeTable", 2)
}

func TestDictionaryAgent_GenerateKeepsCuratedText(t *testing.T) {
	adapter := &agenttest.MockAdapter{}
	adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(ordersInfo(), nil)

	lang := &agenttest.MockLanguage{}
	lang.On("DescribeFields", mock.Anything, mock.Anything).Return(map[string]llm.FieldDescription{
		"id":     {Description: "Generated id text"},
		"status": {Description: "Generated status text"},
	}, nil)

	a := newDictionaryAgent(adapter, lang)
	h, tx := newTx(t, func(s *domain.Session) {
		selectedOrders(s)
		s.Dictionary = &domain.Dictionary{
			Tables: map[string]*domain.TableEntry{
				"ORDERS": {
					Name:        "ORDERS",
					Description: "One row per checkout",
					Columns:     []domain.FieldEntry{{Name: "STATUS", Description: "Curated status text"}},
				},
				"REFUNDS": {Name: "REFUNDS", Columns: []domain.FieldEntry{{Name: "ID"}}},
			},
		}
	})

	res := a.Generate(context.Background(), tx, nil)
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)

	orders := res.Dictionary.Tables["ORDERS"]
	require.NotNil(t, orders)
	assert.Equal(t, "One row per checkout", orders.Description)
	assert.Equal(t, "Generated id text", orders.Columns[0].Description)
	assert.Equal(t, "Curated status text", orders.Columns[1].Description)
	assert.NotContains(t, res.Dictionary.Tables, "REFUNDS")

	assert.Contains(t, h.Session().Dictionary.Tables, "REFUNDS")
}

func TestDictionaryAgent_GenerateFailures(t *testing.T) {
	t.Run("no selection", func(t *testing.T) {
		a := newDictionaryAgent(&agenttest.MockAdapter{}, &agenttest.MockLanguage{})
		_, tx := newTx(t, connected)

		res := a.Generate(context.Background(), tx, nil)
		assert.True(t, errors.Is(res.Err, domain.ErrNoTablesSelected))
	})

	t.Run("metadata failure stages nothing", func(t *testing.T) {
		adapter := &agenttest.MockAdapter{}
		adapter.On("DescribeTable", mock.Anything, ordersRef()).Return(nil, errors.New("object does not exist"))
		lang := &agenttest.MockLanguage{}

		a := newDictionaryAgent(adapter, lang)
		h, tx := newTx(t, selectedOrders)

		res := a.Generate(context.Background(), tx, nil)
		var pe *domain.ProviderError
		require.True(t, errors.As(res.Err, &pe))
		assert.Equal(t, "fetch_metadata", pe.Op)
		assert.Nil(t, h.Session().Dictionary)
		lang.AssertNotCalled(t, "DescribeFields", mock.Anything, mock.Anything)
	})
}

const ordersYAML = `database: SALES
schema: PUBLIC
tables:
  ORDERS:
    description: One row per checkout
    columns:
      - name: ID
        type: NUMBER
        description: Unique order number
`

func TestDictionaryAgent_LoadAndSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "orders.yaml", []byte(ordersYAML), 0o644))

	docs := docstore.NewFileStoreWithFs(fs)
	a := agent.NewDictionaryAgent(&agenttest.MockDatabases{}, &agenttest.MockLanguage{}, docs, agent.DictionaryOptions{})
	ctx := context.Background()
	h, tx := newTx(t, nil)

	res := a.Load(ctx, tx, "orders.yaml")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Loaded data dictionary from orders.yaml with 1 tables: ORDERS.", res.Message)

	res = a.Save(ctx, h.Begin(), "exports/orders.json")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "Saved data dictionary with 1 tables to exports/orders.json (json).", res.Message)

	data, err := afero.ReadFile(fs, "exports/orders.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Unique order number"`)

	res = a.Load(ctx, h.Begin(), "exports/orders.json")
	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "One row per checkout", h.Session().Dictionary.Tables["ORDERS"].Description)
}

func TestDictionaryAgent_LoadFailuresKeepPrevious(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "broken.yaml", []byte("tables: [unclosed"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "empty.yaml", []byte("database: SALES\n"), 0o644))

	a := agent.NewDictionaryAgent(&agenttest.MockDatabases{}, &agenttest.MockLanguage{},
		docstore.NewFileStoreWithFs(fs), agent.DictionaryOptions{})

	previous := &domain.Dictionary{Tables: map[string]*domain.TableEntry{"CUSTOMERS": {Name: "CUSTOMERS"}}}

	tests := []struct {
		source string
		kind   domain.ErrorKind
	}{
		{"broken.yaml", domain.KindDictionaryFormat},
		{"empty.yaml", domain.KindDictionaryFormat},
		{"missing.yaml", domain.KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			h, tx := newTx(t, func(s *domain.Session) { s.Dictionary = previous.Clone() })

			res := a.Load(context.Background(), tx, tt.source)
			require.Equal(t, domain.StatusFailure, res.Status)
			assert.Equal(t, tt.kind, domain.KindOf(res.Err))
			assert.Equal(t, []string{"CUSTOMERS"}, h.Session().Dictionary.TableNames())
		})
	}
}

func TestDictionaryAgent_LoadDefaultMissingOffersFiles(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		message string
		rows    int
	}{
		{
			name:    "documents stored",
			files:   []string{"exports/sales.json", "notes.txt", "orders.yaml"},
			message: "No dictionary found at data_dictionary.yaml. Available dictionary files: exports/sales.json, orders.yaml. Load one by name.",
			rows:    2,
		},
		{
			name:    "nothing stored",
			files:   []string{"notes.txt"},
			message: "No dictionary found at data_dictionary.yaml and no dictionary files are stored. Generate one first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, f := range tt.files {
				require.NoError(t, afero.WriteFile(fs, f, []byte(ordersYAML), 0o644))
			}
			a := agent.NewDictionaryAgent(&agenttest.MockDatabases{}, &agenttest.MockLanguage{},
				docstore.NewFileStoreWithFs(fs), agent.DictionaryOptions{})
			h, tx := newTx(t, nil)

			res := a.Load(context.Background(), tx, "")
			require.Equal(t, domain.StatusFailure, res.Status)
			assert.Equal(t, domain.KindProvider, domain.KindOf(res.Err))
			assert.Equal(t, tt.message, res.Message)
			if tt.rows > 0 {
				require.NotNil(t, res.Data)
				assert.Equal(t, tt.rows, res.Data.RowCount)
			} else {
				assert.Nil(t, res.Data)
			}
			assert.Nil(t, h.Session().Dictionary)
		})
	}
}

func TestDictionaryAgent_Preview(t *testing.T) {
	a := newDictionaryAgent(&agenttest.MockAdapter{}, &agenttest.MockLanguage{})

	t.Run("loaded", func(t *testing.T) {
		_, tx := newTx(t, func(s *domain.Session) {
			s.Dictionary = &domain.Dictionary{
				Database: "SALES",
				Tables: map[string]*domain.TableEntry{
					"ORDERS": {
						Name:        "ORDERS",
						Description: "One row per checkout",
						Tags:        []string{"sales", "core"},
						Columns:     []domain.FieldEntry{{Name: "ID"}, {Name: "STATUS"}},
					},
					"CUSTOMERS": {Name: "CUSTOMERS", Columns: []domain.FieldEntry{{Name: "ID"}}},
				},
				Relationships: []domain.Relationship{{From: "ORDERS.CUSTOMER_ID", To: "CUSTOMERS.ID"}},
			}
		})

		res := a.Preview(context.Background(), tx)
		require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
		assert.Equal(t, "The data dictionary documents 2 tables and 1 relationships.", res.Message)
		require.NotNil(t, res.Data)
		assert.Equal(t, []string{"#", "table", "description", "columns", "tags"}, res.Data.Columns)
		assert.Equal(t, [][]any{
			{1, "CUSTOMERS", "", 1, ""},
			{2, "ORDERS", "One row per checkout", 2, "sales, core"},
		}, res.Data.Rows)
		assert.NotNil(t, res.Dictionary)
	})

	t.Run("none loaded", func(t *testing.T) {
		_, tx := newTx(t, nil)
		res := a.Preview(context.Background(), tx)
		assert.Equal(t, domain.KindNoDictionaryLoaded, domain.KindOf(res.Err))
	})
}

func TestDictionaryAgent_SaveWithoutDictionary(t *testing.T) {
	a := newDictionaryAgent(&agenttest.MockAdapter{}, &agenttest.MockLanguage{})
	_, tx := newTx(t, nil)

	res := a.Save(context.Background(), tx, "out.yaml")
	assert.Equal(t, domain.KindNoDictionaryLoaded, domain.KindOf(res.Err))
}
