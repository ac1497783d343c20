package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
)

var checker = mcp.NewValidator(mcp.MysqlBlockedPatterns)

var systemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// Adapter implements mcp.Adapter for MySQL
type Adapter struct {
	db       *sql.DB
	database string
}

// NewAdapter creates a new MySQL adapter
func NewAdapter() mcp.Adapter {
	return &Adapter{}
}

// NewAdapterWithDB wraps an open handle. database is the default database.
func NewAdapterWithDB(db *sql.DB, database string) *Adapter {
	return &Adapter{db: db, database: database}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() string {
	return string(domain.BackendMySQL)
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `MySQL SQL dialect:
- Use backticks for identifiers: ` + "`column_name`" + `
- String concatenation: CONCAT(a, b)
- Case-insensitive matching: LIKE (MySQL is case-insensitive by default)
- Date functions: NOW(), CURDATE(), CURRENT_TIMESTAMP
- Date formatting: DATE_FORMAT(date, '%Y-%m-%d')
- Date extraction: YEAR(date), MONTH(date), DAY(date)
- Pagination: LIMIT n OFFSET m or LIMIT offset, count
- NULL handling: IFNULL(column, default), NULLIF(a, b), COALESCE()
- Aggregate functions: COUNT(), SUM(), AVG(), MIN(), MAX(), GROUP_CONCAT()
- Use single quotes for strings`
}

// BuildDSN renders a driver DSN from the config
func BuildDSN(config mcp.ConnectionConfig) string {
	port := config.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = config.Username
	cfg.Passwd = config.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", config.Host, port)
	cfg.DBName = config.Database
	cfg.ParseTime = true
	if config.SSLMode == "require" || config.SSLMode == "verify-full" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}

// Connect establishes connection to MySQL
func (a *Adapter) Connect(ctx context.Context, config mcp.ConnectionConfig) error {
	db, err := sql.Open("mysql", BuildDSN(config))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping: %w", err)
	}

	a.db = db
	a.database = config.Database
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

// CurrentContext reports the default database and user
func (a *Adapter) CurrentContext(ctx context.Context) (*mcp.ConnectionContext, error) {
	var database sql.NullString
	var cc mcp.ConnectionContext
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE(), CURRENT_USER()").Scan(&database, &cc.User); err != nil {
		return nil, fmt.Errorf("failed to read session context: %w", err)
	}
	cc.Database = database.String
	return &cc, nil
}

// ListDatabases returns the user databases
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		if systemDatabases[strings.ToLower(name)] {
			continue
		}
		databases = append(databases, name)
	}

	return databases, rows.Err()
}

// ListSchemas returns the database itself. MySQL has no schema level below it.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	if database == "" {
		database = a.database
	}
	if database == "" {
		return nil, fmt.Errorf("no database selected")
	}
	return []string{database}, nil
}

// ListTables returns tables of a database with approximate row counts
func (a *Adapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	if database == "" {
		database = a.database
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT TABLE_NAME, TABLE_TYPE, TABLE_ROWS
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME
	`, database)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []mcp.TableSummary
	for rows.Next() {
		var name, kind string
		var count sql.NullInt64
		if err := rows.Scan(&name, &kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		summary := mcp.TableSummary{Name: name, Database: database, Kind: kind}
		if count.Valid {
			n := count.Int64
			summary.RowCount = &n
		}
		tables = append(tables, summary)
	}

	return tables, rows.Err()
}

// DescribeTable returns detailed table schema with sample values
func (a *Adapter) DescribeTable(ctx context.Context, table domain.TableRef) (*mcp.TableInfo, error) {
	database := table.Database
	if database == "" {
		database = a.database
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE = 'YES',
			COLUMN_KEY = 'PRI',
			COLUMN_COMMENT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, database, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	defer rows.Close()

	var columns []mcp.ColumnInfo
	for rows.Next() {
		var col mcp.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.PrimaryKey, &col.Description); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table not found: %s.%s", database, table.Name)
	}

	info := &mcp.TableInfo{Name: table.Name, Database: database, Columns: columns}

	var count sql.NullInt64
	err = a.db.QueryRowContext(ctx, `
		SELECT TABLE_ROWS FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	`, database, table.Name).Scan(&count)
	if err == nil && count.Valid {
		n := count.Int64
		info.RowCount = &n
	}

	sample := fmt.Sprintf("SELECT * FROM %s.%s LIMIT 20", quoteIdent(database), quoteIdent(table.Name))
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
func (a *Adapter) ExecuteQuery(ctx context.Context, sql string, opts mcp.QueryOptions) (*mcp.QueryResult, error) {
	if err := a.ValidateQuery(sql); err != nil {
		return nil, err
	}

	sql = mcp.EnforceLimit(sql, opts.MaxRows, "LIMIT")

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		// MySQL 5.7.8+ honours the statement-level execution limit
		sql = applyExecutionTime(sql, opts.Timeout)
	}

	return a.query(ctx, sql, opts.MaxRows)
}

func (a *Adapter) query(ctx context.Context, query string, maxRows int) (*mcp.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return mcp.ScanRows(rows, maxRows)
}

func applyExecutionTime(sql string, timeout time.Duration) string {
	trimmed := strings.TrimSpace(sql)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return sql
	}
	return fmt.Sprintf("SELECT /*+ MAX_EXECUTION_TIME(%d) */%s", timeout.Milliseconds(), trimmed[len("SELECT"):])
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var _ mcp.ContextReporter = (*Adapter)(nil)
