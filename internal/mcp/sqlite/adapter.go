package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
	_ "modernc.org/sqlite"
)

// MainSchema is the schema name SQLite gives the primary database file.
const MainSchema = "main"

var checker = mcp.NewValidator(mcp.SqliteBlockedPatterns)

// Adapter implements mcp.Adapter for SQLite
type Adapter struct {
	db   *sql.DB
	path string
}

// NewAdapter creates a new SQLite adapter
func NewAdapter() mcp.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() string {
	return string(domain.BackendSQLite)
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `SQLite SQL dialect:
- Use double quotes for identifiers: "column_name"
- String concatenation: || operator (e.g., col1 || ' ' || col2)
- Case-insensitive matching: LIKE (case-insensitive by default for ASCII)
- Date functions: date(), time(), datetime(), julianday(), strftime()
- Current time: datetime('now'), date('now')
- Date formatting: strftime('%Y-%m-%d', date_column)
- Pagination: LIMIT n OFFSET m
- Boolean values: 0 and 1 (no native boolean type)
- NULL handling: IFNULL(column, default), NULLIF(a, b), COALESCE()
- String functions: LENGTH(), SUBSTR(), TRIM(), UPPER(), LOWER(), REPLACE()
- Aggregate functions: COUNT(), SUM(), AVG(), MIN(), MAX(), GROUP_CONCAT()
- Use single quotes for strings
- No native ENUM type - use CHECK constraints
- AUTOINCREMENT with INTEGER PRIMARY KEY
- typeof() function to check value types
- No RIGHT JOIN or FULL OUTER JOIN support (use LEFT JOIN alternatives)
- Use EXPLAIN QUERY PLAN for query analysis`
}

// Connect opens the database file read-only
func (a *Adapter) Connect(ctx context.Context, config mcp.ConnectionConfig) error {
	path := config.Path
	if path == "" {
		path = config.Database
	}
	if path == "" {
		return fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// a missing file only fails on first read in read-only mode
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return fmt.Errorf("failed to read database: %w", err)
	}

	a.db = db
	a.path = path
	return nil
}

// Close closes the connection
func (a *Adapter) Close() error {
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// HealthCheck verifies connection is alive
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("not connected")
	}
	return a.db.PingContext(ctx)
}

// ListDatabases returns the attached databases
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, fmt.Errorf("failed to scan database: %w", err)
		}
		if name == "temp" {
			continue
		}
		databases = append(databases, name)
	}

	return databases, rows.Err()
}

// ListSchemas returns the main schema
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	return []string{MainSchema}, nil
}

// ListTables returns all tables and views with exact row counts for tables
func (a *Adapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT name, type
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []mcp.TableSummary
	for rows.Next() {
		var t mcp.TableSummary
		if err := rows.Scan(&t.Name, &t.Kind); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		t.Schema = MainSchema
		tables = append(tables, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	for i := range tables {
		if tables[i].Kind == "table" {
			tables[i].RowCount = a.count(ctx, tables[i].Name)
		}
	}

	return tables, nil
}

// DescribeTable returns detailed table schema with sample values
func (a *Adapter) DescribeTable(ctx context.Context, table domain.TableRef) (*mcp.TableInfo, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT cid, name, type, \"notnull\", dflt_value, pk FROM pragma_table_info(?)", table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	var columns []mcp.ColumnInfo
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var dfltValue sql.NullString

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		columns = append(columns, mcp.ColumnInfo{
			Name:       name,
			DataType:   dataType,
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", table.Name)
	}

	info := &mcp.TableInfo{
		Name:     table.Name,
		Schema:   MainSchema,
		Columns:  columns,
		RowCount: a.count(ctx, table.Name),
	}

	sample := fmt.Sprintf("SELECT * FROM %s LIMIT 20", quoteIdent(table.Name))
	if result, err := a.query(ctx, sample, 20); err == nil {
		mcp.AttachSamples(info, mcp.SampleValues(result, mcp.DefaultSampleSize))
	}

	return info, nil
}

// ValidateQuery validates SQL is safe to execute
func (a *Adapter) ValidateQuery(sql string) error {
	return checker.Check(sql)
}

// ExecuteQuery executes read-only SQL query
func (a *Adapter) ExecuteQuery(ctx context.Context, sqlStr string, opts mcp.QueryOptions) (*mcp.QueryResult, error) {
	if err := a.ValidateQuery(sqlStr); err != nil {
		return nil, err
	}

	sqlStr = mcp.EnforceLimit(sqlStr, opts.MaxRows, "LIMIT")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	return a.query(ctx, sqlStr, opts.MaxRows)
}

func (a *Adapter) query(ctx context.Context, query string, maxRows int) (*mcp.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return mcp.ScanRows(rows, maxRows)
}

func (a *Adapter) count(ctx context.Context, table string) *int64 {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return nil
	}
	return &n
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
