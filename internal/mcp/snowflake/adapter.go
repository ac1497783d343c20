package snowflake

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rrens/nl2sql/internal/domain"
	"github.com/Rrens/nl2sql/internal/mcp"
)

var (
	checker     = mcp.NewValidator(mcp.SnowflakeBlockedPatterns)
	simpleIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
)

// Adapter implements mcp.Adapter for Snowflake through an MCP server
type Adapter struct {
	client     *Client
	connection map[string]any
	config     mcp.ConnectionConfig
}

// NewAdapter creates a new Snowflake adapter
func NewAdapter() mcp.Adapter {
	return &Adapter{}
}

// DatabaseType returns the database type identifier
func (a *Adapter) DatabaseType() string {
	return string(domain.BackendSnowflake)
}

// SQLDialect returns SQL dialect hints for LLM prompting
func (a *Adapter) SQLDialect() string {
	return `Snowflake SQL dialect:
- Unquoted identifiers are case-insensitive and stored upper case
- Fully qualify tables as DATABASE.SCHEMA.TABLE
- Case-insensitive matching: ILIKE
- Date functions: DATE_TRUNC('month', col), DATEADD(day, n, col), DATEDIFF(day, a, b)
- Current time: CURRENT_TIMESTAMP(), CURRENT_DATE()
- Semi-structured data: col:field::STRING, FLATTEN()
- Pagination: LIMIT n OFFSET m
- Conditional aggregation: COUNT_IF(), SUM(IFF(cond, x, 0))
- NULL handling: COALESCE(), NVL(), ZEROIFNULL()
- Window functions: ROW_NUMBER(), RANK(), LAG(), LEAD(), QUALIFY clause
- String functions: CONCAT(), SPLIT_PART(), REGEXP_SUBSTR(), UPPER(), LOWER()`
}

// Connect performs the MCP handshake and verifies the credentials
func (a *Adapter) Connect(ctx context.Context, config mcp.ConnectionConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("mcp endpoint is required")
	}
	if config.Account == "" || config.Username == "" {
		return fmt.Errorf("snowflake account and user are required")
	}

	client, err := NewClient(config.Endpoint)
	if err != nil {
		return err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return err
	}

	a.client = client
	a.config = config
	a.connection = map[string]any{
		"account":   config.Account,
		"user":      config.Username,
		"password":  config.Password,
		"warehouse": config.Warehouse,
		"database":  config.Database,
		"schema":    config.Schema,
		"role":      config.Role,
	}

	if err := a.HealthCheck(ctx); err != nil {
		a.Close()
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	return nil
}

// Close closes the MCP session
func (a *Adapter) Close() error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}

// HealthCheck verifies the server still accepts the credentials
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("not connected")
	}
	_, err := a.query(ctx, "SELECT 1")
	return err
}

// CurrentContext reports the account, warehouse and namespace in use
func (a *Adapter) CurrentContext(ctx context.Context) (*mcp.ConnectionContext, error) {
	res, err := a.query(ctx, `SELECT CURRENT_ACCOUNT() AS ACCOUNT, CURRENT_USER() AS "USER", CURRENT_WAREHOUSE() AS WAREHOUSE, CURRENT_DATABASE() AS DATABASE, CURRENT_SCHEMA() AS SCHEMA, CURRENT_ROLE() AS ROLE`)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("empty context result")
	}

	get := func(col string) string {
		for i, c := range res.Columns {
			if strings.EqualFold(c, col) && i < len(res.Rows[0]) && res.Rows[0][i] != nil {
				return fmt.Sprint(res.Rows[0][i])
			}
		}
		return ""
	}

	return &mcp.ConnectionContext{
		Account:   get("ACCOUNT"),
		User:      get("USER"),
		Warehouse: get("WAREHOUSE"),
		Database:  get("DATABASE"),
		Schema:    get("SCHEMA"),
		Role:      get("ROLE"),
	}, nil
}

// ListDatabases returns database names
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	var out struct {
		Databases []string `json:"databases"`
	}
	if err := a.callTool(ctx, "list_databases", nil, &out); err != nil {
		return nil, err
	}
	return out.Databases, nil
}

// ListSchemas returns schema names of a database
func (a *Adapter) ListSchemas(ctx context.Context, database string) ([]string, error) {
	database = a.orDefault(database, a.config.Database)
	if database == "" {
		return nil, fmt.Errorf("database is required to list schemas")
	}

	var out struct {
		Schemas []string `json:"schemas"`
	}
	if err := a.callTool(ctx, "list_schemas", map[string]any{"database": database}, &out); err != nil {
		return nil, err
	}
	return out.Schemas, nil
}

// ListTables returns the tables of a schema
func (a *Adapter) ListTables(ctx context.Context, database, schema string) ([]mcp.TableSummary, error) {
	database = a.orDefault(database, a.config.Database)
	schema = a.orDefault(schema, a.config.Schema)
	if database == "" || schema == "" {
		return nil, fmt.Errorf("database and schema are required to list tables")
	}

	var out struct {
		Tables []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Database string `json:"database"`
			Schema   string `json:"schema"`
			RowCount *int64 `json:"row_count"`
		} `json:"tables"`
	}
	if err := a.callTool(ctx, "list_tables", map[string]any{"database": database, "schema": schema}, &out); err != nil {
		return nil, err
	}

	tables := make([]mcp.TableSummary, 0, len(out.Tables))
	for _, t := range out.Tables {
		tables = append(tables, mcp.TableSummary{
			Name:     t.Name,
			Database: a.orDefault(t.Database, database),
			Schema:   a.orDefault(t.Schema, schema),
			Kind:     t.Type,
			RowCount: t.RowCount,
		})
	}
	return tables, nil
}

// DescribeTable returns columns, types, row count and sample values
func (a *Adapter) DescribeTable(ctx context.Context, table domain.TableRef) (*mcp.TableInfo, error) {
	table.Database = a.orDefault(table.Database, a.config.Database)
	table.Schema = a.orDefault(table.Schema, a.config.Schema)
	if table.Database == "" || table.Schema == "" {
		return nil, fmt.Errorf("table %s is not fully qualified", table.Name)
	}

	var out struct {
		Name     string `json:"name"`
		Columns  []struct {
			Name       string `json:"name"`
			Type       string `json:"type"`
			Nullable   bool   `json:"nullable"`
			PrimaryKey bool   `json:"primary_key"`
			Comment    string `json:"comment"`
		} `json:"columns"`
		RowCount *int64 `json:"row_count"`
	}
	args := map[string]any{"database": table.Database, "schema": table.Schema, "table": table.Name}
	if err := a.callTool(ctx, "describe_table", args, &out); err != nil {
		return nil, err
	}
	if len(out.Columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", table.String())
	}

	info := &mcp.TableInfo{
		Name:     a.orDefault(out.Name, table.Name),
		Database: table.Database,
		Schema:   table.Schema,
		RowCount: out.RowCount,
	}
	for _, c := range out.Columns {
		info.Columns = append(info.Columns, mcp.ColumnInfo{
			Name:        c.Name,
			DataType:    c.Type,
			Nullable:    c.Nullable,
			PrimaryKey:  c.PrimaryKey,
			Description: c.Comment,
		})
	}

	sample, err := a.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 20", qualified(info.Ref())))
	if err == nil {
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

	res, err := a.query(ctx, sql)
	if err != nil {
		return nil, err
	}

	if opts.MaxRows > 0 && len(res.Rows) > opts.MaxRows {
		res.Rows = res.Rows[:opts.MaxRows]
		res.Truncated = true
	}
	res.RowCount = len(res.Rows)
	return res, nil
}

func (a *Adapter) query(ctx context.Context, sql string) (*mcp.QueryResult, error) {
	var out struct {
		Columns []string          `json:"columns"`
		Rows    []json.RawMessage `json:"rows"`
	}
	if err := a.callTool(ctx, "execute_query", map[string]any{"sql": sql}, &out); err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(out.Rows))
	for _, raw := range out.Rows {
		row, err := decodeRow(raw, out.Columns)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return &mcp.QueryResult{Columns: out.Columns, Rows: rows, RowCount: len(rows)}, nil
}

func (a *Adapter) callTool(ctx context.Context, name string, args map[string]any, out any) error {
	if a.client == nil {
		return fmt.Errorf("not connected")
	}
	if args == nil {
		args = make(map[string]any, 1)
	}
	args["connection"] = a.connection
	return a.client.CallTool(ctx, name, args, out)
}

func (a *Adapter) orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// decodeRow accepts rows as arrays or as objects keyed by column name.
func decodeRow(raw json.RawMessage, columns []string) ([]any, error) {
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}

	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = obj[c]
	}
	return row, nil
}

func qualified(t domain.TableRef) string {
	parts := []string{t.Database, t.Schema, t.Name}
	out := make([]string, 0, 3)
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}

func quoteIdent(name string) string {
	if simpleIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ mcp.ContextReporter = (*Adapter)(nil)
