// Package agenttest provides testify mocks of the capability providers the
// agents depend on.
package agenttest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/llm"
	"github.com/Rrens/nl2sql/internal/mcp"
)

// MockDatabases mocks the connection pool.
type MockDatabases struct {
	mock.Mock
}

func (m *MockDatabases) Connect(ctx context.Context, dbType string, config mcp.ConnectionConfig) (string, mcp.Adapter, error) {
	args := m.Called(ctx, dbType, config)
	var adapter mcp.Adapter
	if a := args.Get(1); a != nil {
		adapter = a.(mcp.Adapter)
	}
	return args.String(0), adapter, args.Error(2)
}

func (m *MockDatabases) Adapter(ctx context.Context, ref string) (mcp.Adapter, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(mcp.Adapter), args.Error(1)
}

func (m *MockDatabases) Release(ref string) error {
	return m.Called(ref).Error(0)
}

// MockAdapter mocks one database connection.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) DatabaseType() string { return "snowflake" }
func (m *MockAdapter) SQLDialect() string   { return "Snowflake SQL" }

func (m *MockAdapter) Connect(ctx context.Context, config mcp.ConnectionConfig) error {
	return m.Called(ctx, config).Error(0)
}

func (m *MockAdapter) Close() error {
	return m.Called().Error(0)
}

func (m *MockAdapter) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAdapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	args := m.Called(ctx, database)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAdapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	args := m.Called(ctx, database, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]mcp.TableSummary), args.Error(1)
}

func (m *MockAdapter) DescribeTable(ctx context.Context, table domain.TableRef) (*mcp.TableInfo, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mcp.TableInfo), args.Error(1)
}

func (m *MockAdapter) ValidateQuery(sql string) error {
	return m.Called(sql).Error(0)
}

func (m *MockAdapter) ExecuteQuery(ctx context.Context, sql string, opts mcp.QueryOptions) (*mcp.QueryResult, error) {
	args := m.Called(ctx, sql, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mcp.QueryResult), args.Error(1)
}

// ReportingAdapter is a MockAdapter that also reports its session context.
type ReportingAdapter struct {
	MockAdapter
	Context *mcp.ConnectionContext
}

func (r *ReportingAdapter) CurrentContext(ctx context.Context) (*mcp.ConnectionContext, error) {
	return r.Context, nil
}

// MockLanguage mocks the language client.
type MockLanguage struct {
	mock.Mock
}

func (m *MockLanguage) ClassifyIntent(ctx context.Context, message string) (llm.IntentLabel, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(llm.IntentLabel), args.Error(1)
}

func (m *MockLanguage) GenerateSQL(ctx context.Context, req llm.SQLRequest) (*llm.SQLResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.SQLResult), args.Error(1)
}

func (m *MockLanguage) DescribeFields(ctx context.Context, req llm.DescribeRequest) (map[string]llm.FieldDescription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]llm.FieldDescription), args.Error(1)
}

func (m *MockLanguage) ExplainError(ctx context.Context, question, sql, failure string) (string, error) {
	args := m.Called(ctx, question, sql, failure)
	return args.String(0), args.Error(1)
}

// MemoryCache is an in-process schema cache.
type MemoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]string)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *MemoryCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
