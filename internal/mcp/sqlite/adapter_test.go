package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
	"github.com/Rrens/nl2sql/internal/mcp/sqlite"
)

func seedDatabase(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, region TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, status TEXT, total REAL)`,
		`CREATE VIEW open_orders AS SELECT * FROM orders WHERE status = 'open'`,
		`INSERT INTO customers (id, name, region) VALUES (1, 'Acme', 'EU'), (2, 'Globex', 'US'), (3, 'Initech', 'EU')`,
		`INSERT INTO orders (id, customer_id, status, total) VALUES (1, 1, 'open', 10.5), (2, 1, 'closed', 20), (3, 2, 'open', 7.25), (4, 3, NULL, 3)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return path
}

func connect(t *testing.T) mcp.Adapter {
	t.Helper()

	a := sqlite.NewAdapter()
	require.NoError(t, a.Connect(context.Background(), mcp.ConnectionConfig{Path: seedDatabase(t)}))
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAdapter_ConnectRequiresPath(t *testing.T) {
	a := sqlite.NewAdapter()
	err := a.Connect(context.Background(), mcp.ConnectionConfig{})
	require.Error(t, err)
}

func TestAdapter_Listings(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	dbs, err := a.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, dbs)

	schemas, err := a.ListSchemas(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{sqlite.MainSchema}, schemas)

	tables, err := a.ListTables(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, tables, 3)

	assert.Equal(t, "customers", tables[0].Name)
	require.NotNil(t, tables[0].RowCount)
	assert.Equal(t, int64(3), *tables[0].RowCount)

	assert.Equal(t, "open_orders", tables[1].Name)
	assert.Equal(t, "view", tables[1].Kind)
	assert.Nil(t, tables[1].RowCount)

	assert.Equal(t, "orders", tables[2].Name)
	assert.Equal(t, int64(4), *tables[2].RowCount)
}

func TestAdapter_DescribeTable(t *testing.T) {
	a := connect(t)

	info, err := a.DescribeTable(context.Background(), domain.TableRef{Name: "orders"})
	require.NoError(t, err)

	assert.Equal(t, "main.orders", info.Ref().String())
	require.Len(t, info.Columns, 4)

	id := info.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)

	status := info.Columns[2]
	assert.Equal(t, "TEXT", status.DataType)
	assert.True(t, status.Nullable)
	assert.Equal(t, []string{"open", "closed"}, status.SampleValues)

	require.NotNil(t, info.RowCount)
	assert.Equal(t, int64(4), *info.RowCount)
}

func TestAdapter_DescribeMissingTable(t *testing.T) {
	a := connect(t)

	_, err := a.DescribeTable(context.Background(), domain.TableRef{Name: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table not found")
}

func TestAdapter_ExecuteQuery(t *testing.T) {
	a := connect(t)

	result, err := a.ExecuteQuery(context.Background(),
		"SELECT region, COUNT(*) AS n FROM customers GROUP BY region ORDER BY region",
		mcp.QueryOptions{MaxRows: 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"region", "n"}, result.Columns)
	require.Equal(t, 2, result.RowCount)
	assert.Equal(t, "EU", result.Rows[0][0])
	assert.Equal(t, int64(2), result.Rows[0][1])
	assert.False(t, result.Truncated)
}

func TestAdapter_ExecuteQueryTruncates(t *testing.T) {
	a := connect(t)

	result, err := a.ExecuteQuery(context.Background(), "SELECT id FROM orders ORDER BY id", mcp.QueryOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowCount)
	assert.True(t, result.Truncated)
}

func TestAdapter_ExecuteQueryRejects(t *testing.T) {
	a := connect(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"DELETE FROM orders",
		"SELECT 1; DROP TABLE orders",
		"PRAGMA writable_schema = 1",
		"ATTACH DATABASE '/tmp/x.db' AS x",
	} {
		_, err := a.ExecuteQuery(ctx, stmt, mcp.QueryOptions{MaxRows: 10})
		assert.Error(t, err, stmt)
	}

	result, err := a.ExecuteQuery(ctx, "SELECT COUNT(*) FROM orders", mcp.QueryOptions{MaxRows: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(4), result.Rows[0][0])
}
