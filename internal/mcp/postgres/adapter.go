package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
)

var checker = mcp.NewValidator(mcp.PostgresBlockedPatterns)

// Adapter implements mcp.Adapter for PostgreSQL
type Adapter struct {
	pool     *pgxpool.Pool
	database string
	schema   string
}

// NewAdapter creates a new PostgreSQL adapter
func NewAdapter() mcp.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() string {
	return string(domain.BackendPostgres)
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `PostgreSQL SQL dialect:
- Use double quotes for identifiers with special characters: "column name"
- String concatenation: column1 || column2
- Case-insensitive matching: ILIKE instead of LIKE
- Date/time functions: NOW(), CURRENT_DATE, CURRENT_TIMESTAMP
- Date truncation: DATE_TRUNC('month', date_column)
- Date extraction: EXTRACT(YEAR FROM date_column)
- Pagination: LIMIT n OFFSET m
- NULL handling: COALESCE(column, default_value), NULLIF(a, b)
- JSON functions: jsonb_extract_path(), ->, ->>
- Aggregate functions: COUNT(), SUM(), AVG(), MIN(), MAX(), STRING_AGG()
- Window functions: ROW_NUMBER(), RANK(), DENSE_RANK(), LAG(), LEAD()
- Common table expressions (CTEs): WITH cte AS (SELECT ...)`
}

// BuildDSN renders a connection string from the config
func BuildDSN(config mcp.ConnectionConfig) string {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := config.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(config.Username, config.Password),
		Host:     fmt.Sprintf("%s:%d", config.Host, port),
		Path:     "/" + config.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// Connect establishes connection to PostgreSQL
func (a *Adapter) Connect(ctx context.Context, config mcp.ConnectionConfig) error {
	poolConfig, err := pgxpool.ParseConfig(BuildDSN(config))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping: %w", err)
	}

	a.pool = pool
	a.database = config.Database
	a.schema = config.Schema
	if a.schema == "" {
		a.schema = "public"
	}
	return nil
}

// Close closes the connection
func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// HealthCheck verifies connection is alive
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.pool == nil {
		return fmt.Errorf("not connected")
	}
	return a.pool.Ping(ctx)
}

// CurrentContext reports the database, schema and user of the session
func (a *Adapter) CurrentContext(ctx context.Context) (*mcp.ConnectionContext, error) {
	var cc mcp.ConnectionContext
	err := a.pool.QueryRow(ctx, `SELECT current_database(), current_schema(), current_user`).
		Scan(&cc.Database, &cc.Schema, &cc.User)
	if err != nil {
		return nil, fmt.Errorf("failed to read session context: %w", err)
	}
	return &cc, nil
}

// ListDatabases returns database names
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	return a.names(ctx, `SELECT datname FROM pg_database WHERE NOT datistemplate AND datallowconn ORDER BY datname`)
}

// ListSchemas returns the schemas of the connected database. PostgreSQL cannot
// inspect other databases over the same connection.
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	if database != "" && database != a.database {
		return nil, fmt.Errorf("connected to database %s, cannot list schemas of %s", a.database, database)
	}
	return a.names(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg_toast%'
		  AND schema_name NOT LIKE 'pg_temp%'
		ORDER BY schema_name
	`)
}

// ListTables returns the tables of a schema with estimated row counts
func (a *Adapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	if schema == "" {
		schema = a.schema
	}

	rows, err := a.pool.Query(ctx, `
		SELECT t.table_name, t.table_type, c.reltuples::bigint
		FROM information_schema.tables t
		LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
		LEFT JOIN pg_class c ON c.relname = t.table_name AND c.relnamespace = n.oid
		WHERE t.table_schema = $1
		ORDER BY t.table_name
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []mcp.TableSummary
	for rows.Next() {
		var name, kind string
		var estimate *int64
		if err := rows.Scan(&name, &kind, &estimate); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		if estimate != nil && *estimate < 0 {
			estimate = nil
		}
		tables = append(tables, mcp.TableSummary{
			Name:     name,
			Database: a.database,
			Schema:   schema,
			Kind:     kind,
			RowCount: estimate,
		})
	}

	return tables, rows.Err()
}

// DescribeTable returns columns, types, row estimate and sample values
func (a *Adapter) DescribeTable(ctx context.Context, table domain.TableRef) (*mcp.TableInfo, error) {
	schema := table.Schema
	if schema == "" {
		schema = a.schema
	}

	rows, err := a.pool.Query(ctx, `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS nullable,
			EXISTS (
				SELECT 1 FROM information_schema.key_column_usage kcu
				JOIN information_schema.table_constraints tc
				  ON kcu.constraint_name = tc.constraint_name
				 AND kcu.table_schema = tc.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND kcu.table_schema = c.table_schema
				  AND kcu.table_name = c.table_name
				  AND kcu.column_name = c.column_name
			) AS primary_key,
			COALESCE(col_description(
				format('%I.%I', c.table_schema, c.table_name)::regclass,
				c.ordinal_position
			), '') AS description
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`, schema, table.Name)
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
		return nil, fmt.Errorf("table not found: %s.%s", schema, table.Name)
	}

	info := &mcp.TableInfo{
		Name:     table.Name,
		Database: a.database,
		Schema:   schema,
		Columns:  columns,
	}

	var rowCount int64
	err = a.pool.QueryRow(ctx, `
		SELECT c.reltuples::bigint
		FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`, schema, table.Name).Scan(&rowCount)
	if err == nil && rowCount >= 0 {
		info.RowCount = &rowCount
	}

	ident := pgx.Identifier{schema, table.Name}.Sanitize()
	if sample, err := a.collect(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 20", ident), 20); err == nil {
		mcp.AttachSamples(info, mcp.SampleValues(sample, mcp.DefaultSampleSize))
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
	}

	return a.collect(ctx, sql, opts.MaxRows)
}

func (a *Adapter) collect(ctx context.Context, sql string, maxRows int) (*mcp.QueryResult, error) {
	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	var resultRows [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to get row values: %w", err)
		}
		for i, v := range values {
			if t, ok := v.(time.Time); ok {
				values[i] = t.Format(time.RFC3339)
			}
		}
		resultRows = append(resultRows, values)

		if maxRows > 0 && len(resultRows) > maxRows {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	truncated := maxRows > 0 && len(resultRows) > maxRows
	if truncated {
		resultRows = resultRows[:maxRows]
	}

	return &mcp.QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
	}, nil
}

func (a *Adapter) names(ctx context.Context, query string) ([]string, error) {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan names: %w", err)
	}
	return names, nil
}

var _ mcp.ContextReporter = (*Adapter)(nil)
