package mcp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
)

type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) DatabaseType() string { return "mock" }
func (m *MockAdapter) SQLDialect() string   { return "ANSI SQL" }

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
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAdapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	args := m.Called(ctx, database)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAdapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	args := m.Called(ctx, database, schema)
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

func TestRouter_ConnectAndRelease(t *testing.T) {
	adapter := &MockAdapter{}
	adapter.On("Connect", mock.Anything, mock.Anything).Return(nil)
	adapter.On("HealthCheck", mock.Anything).Return(nil)
	adapter.On("Close").Return(nil).Once()

	router := mcp.NewRouter()
	router.RegisterAdapter("mock", func() mcp.Adapter { return adapter })
	router.RegisterAdapter("other", func() mcp.Adapter { return &MockAdapter{} })
	assert.Equal(t, []string{"mock", "other"}, router.SupportedDatabases())

	ref, got, err := router.Connect(context.Background(), "mock", mcp.ConnectionConfig{Database: "SALES"})
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.Same(t, adapter, got)
	assert.Equal(t, 1, router.PoolSize())

	pooled, err := router.Adapter(context.Background(), ref)
	require.NoError(t, err)
	assert.Same(t, adapter, pooled)

	require.NoError(t, router.Release(ref))
	require.NoError(t, router.Release(ref))
	assert.Equal(t, 0, router.PoolSize())

	_, err = router.Adapter(context.Background(), ref)
	assert.ErrorIs(t, err, mcp.ErrConnectionNotFound)
	adapter.AssertExpectations(t)
}

func TestRouter_ConnectFailure(t *testing.T) {
	adapter := &MockAdapter{}
	adapter.On("Connect", mock.Anything, mock.Anything).Return(errors.New("authentication failed"))

	router := mcp.NewRouter()
	router.RegisterAdapter("mock", func() mcp.Adapter { return adapter })

	_, _, err := router.Connect(context.Background(), "mock", mcp.ConnectionConfig{})
	assert.ErrorContains(t, err, "authentication failed")
	assert.Equal(t, 0, router.PoolSize())

	_, _, err = router.Connect(context.Background(), "oracle", mcp.ConnectionConfig{})
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestRouter_StaleConnectionIsEvicted(t *testing.T) {
	adapter := &MockAdapter{}
	adapter.On("Connect", mock.Anything, mock.Anything).Return(nil).Once()
	adapter.On("HealthCheck", mock.Anything).Return(errors.New("session expired"))
	adapter.On("Close").Return(nil)

	router := mcp.NewRouter()
	router.RegisterAdapter("mock", func() mcp.Adapter { return adapter })

	ref, _, err := router.Connect(context.Background(), "mock", mcp.ConnectionConfig{})
	require.NoError(t, err)

	_, err = router.Adapter(context.Background(), ref)
	assert.ErrorIs(t, err, mcp.ErrConnectionStale)
	assert.Equal(t, 0, router.PoolSize())

	adapter.AssertNumberOfCalls(t, "Connect", 1)
	adapter.AssertCalled(t, "Close")
}

func TestConfigFromDescriptor(t *testing.T) {
	cfg := mcp.ConfigFromDescriptor(domain.ConnectionDescriptor{
		Backend:   domain.BackendSnowflake,
		Account:   "acme-xy12345",
		User:      "analyst",
		Password:  "secret",
		Warehouse: "COMPUTE_WH",
		Database:  "SALES",
		Schema:    "PUBLIC",
		Role:      "ANALYST",
	})

	assert.Equal(t, "acme-xy12345", cfg.Account)
	assert.Equal(t, "analyst", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "COMPUTE_WH", cfg.Warehouse)
	assert.Equal(t, "PUBLIC", cfg.Schema)
}
