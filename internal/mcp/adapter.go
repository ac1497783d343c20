package mcp

import (
	"context"
	"time"

	"github.com/Rrens/nl2sql/internal/domain"
)

// TableSummary is one entry of a table listing
type TableSummary struct {
	Name     string `json:"name"`
	Database string `json:"database,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Kind     string `json:"kind,omitempty"`
	RowCount *int64 `json:"row_count,omitempty"`
}

// TableInfo contains table metadata
type TableInfo struct {
	Name     string       `json:"name"`
	Database string       `json:"database,omitempty"`
	Schema   string       `json:"schema,omitempty"`
	Columns  []ColumnInfo `json:"columns"`
	RowCount *int64       `json:"row_count,omitempty"`
}

// Ref returns the qualified reference of the table.
func (t *TableInfo) Ref() domain.TableRef {
	return domain.TableRef{Database: t.Database, Schema: t.Schema, Name: t.Name}
}

// ColumnInfo contains column metadata
type ColumnInfo struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type"`
	Nullable     bool     `json:"nullable"`
	PrimaryKey   bool     `json:"primary_key"`
	Description  string   `json:"description,omitempty"`
	SampleValues []string `json:"sample_values,omitempty"`
}

// QueryResult contains query execution result
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// ConnectionConfig contains database connection parameters
type ConnectionConfig struct {
	Host      string
	Port      int
	Database  string
	Schema    string
	Username  string
	Password  string
	SSLMode   string
	Account   string
	Warehouse string
	Role      string
	Endpoint  string
	Path      string
}

// ConfigFromDescriptor maps caller credentials onto adapter parameters.
func ConfigFromDescriptor(d domain.ConnectionDescriptor) ConnectionConfig {
	return ConnectionConfig{
		Host:      d.Host,
		Port:      d.Port,
		Database:  d.Database,
		Schema:    d.Schema,
		Username:  d.User,
		Password:  d.Password,
		SSLMode:   d.SSLMode,
		Account:   d.Account,
		Warehouse: d.Warehouse,
		Role:      d.Role,
		Endpoint:  d.Endpoint,
		Path:      d.Path,
	}
}

// QueryOptions contains query execution options
type QueryOptions struct {
	MaxRows int
	Timeout time.Duration
}

// ConnectionContext is what the backend reports as the active session context.
type ConnectionContext struct {
	Account   string `json:"account,omitempty"`
	User      string `json:"user,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ContextReporter is implemented by adapters that can resolve the active context.
type ContextReporter interface {
	CurrentContext(ctx context.Context) (*ConnectionContext, error)
}

// Adapter defines the interface for database adapters
type Adapter interface {
	// DatabaseType returns the database type identifier (snowflake, postgres, mysql, sqlite)
	DatabaseType() string

	// SQLDialect returns SQL dialect hints for LLM prompting
	SQLDialect() string

	// Connect establishes connection to database
	Connect(ctx context.Context, config ConnectionConfig) error

	// Close closes the connection
	Close() error

	// HealthCheck verifies connection is alive
	HealthCheck(ctx context.Context) error

	// ListDatabases returns database names
	ListDatabases(ctx context.Context) ([]string, error)

	// ListSchemas returns schema names of a database
	ListSchemas(ctx context.Context, database string) ([]string, error)

	// ListTables returns the tables of a schema
	ListTables(ctx context.Context, database, schema string) ([]TableSummary, error)

	// DescribeTable returns columns, types and sample values
	DescribeTable(ctx context.Context, table domain.TableRef) (*TableInfo, error)

	// ValidateQuery validates SQL is safe to execute
	ValidateQuery(sql string) error

	// ExecuteQuery executes read-only SQL query
	ExecuteQuery(ctx context.Context, sql string, opts QueryOptions) (*QueryResult, error)
}

// AdapterFactory creates a new adapter instance
type AdapterFactory func() Adapter
