package mcp_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rrens/nl2sql/internal/mcp"
)

func TestValidateSQL(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		// Valid SELECT queries
		{"simple select", "SELECT * FROM users", false},
		{"select with where", "SELECT id FROM users WHERE active = true", false},
		{"cte", "WITH cte AS (SELECT * FROM users) SELECT * FROM cte", false},
		{"subquery", "SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)", false},

		// Invalid - not SELECT
		{"empty", "", true},
		{"insert", "INSERT INTO users VALUES (1)", true},
		{"drop", "DROP TABLE users", true},
		{"revoke", "REVOKE SELECT ON users FROM x", true},
		{"exec", "EXEC procedure", true},

		// Invalid - multiple statements
		{"multi statement", "SELECT 1; SELECT 2;", true},

		// Invalid - file operations
		{"into outfile", "SELECT * INTO OUTFILE '/tmp/x'", true},
		{"load_file", "SELECT LOAD_FILE('/etc/passwd')", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mcp.ValidateSQL(tt.sql, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSQL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSQL_DialectPatterns(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		patterns []*regexp.Regexp
	}{
		{"pg_ls_dir", "SELECT pg_ls_dir('/tmp')", mcp.PostgresBlockedPatterns},
		{"lo_import", "SELECT lo_import('/tmp/x')", mcp.PostgresBlockedPatterns},
		{"dblink", "SELECT * FROM dblink('host=x', 'SELECT 1')", mcp.PostgresBlockedPatterns},
		{"mysql load data", "SELECT 1 FROM t WHERE LOAD DATA", mcp.MysqlBlockedPatterns},
		{"sqlite attach", "SELECT 1 FROM t WHERE x = ATTACH", mcp.SqliteBlockedPatterns},
		{"sqlite pragma", "SELECT * FROM pragma_table_info('t') WHERE PRAGMA", mcp.SqliteBlockedPatterns},
		{"snowflake get", "SELECT 1 FROM t WHERE GET @stage", mcp.SnowflakeBlockedPatterns},
		{"snowflake system function", "SELECT SYSTEM$WHITELIST()", mcp.SnowflakeBlockedPatterns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, mcp.ValidateSQL(tt.sql, tt.patterns))
		})
	}

	assert.NoError(t, mcp.ValidateSQL("SELECT * FROM orders WHERE note = 'GET @stage'", mcp.SnowflakeBlockedPatterns))
}

func TestEnforceLimit(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		maxRows  int
		expected string
	}{
		{"adds limit", "SELECT * FROM users", 100, "SELECT * FROM users LIMIT 100"},
		{"strips semicolon", "SELECT * FROM users;", 10, "SELECT * FROM users LIMIT 10"},
		{"keeps existing limit", "SELECT * FROM users LIMIT 5", 100, "SELECT * FROM users LIMIT 5"},
		{"cte", "WITH a AS (SELECT 1) SELECT * FROM a", 10, "WITH a AS (SELECT 1) SELECT * FROM a LIMIT 10"},
		{"show untouched", "SHOW TABLES", 10, "SHOW TABLES"},
		{"column named limit_date", "SELECT limit_date FROM t", 10, "SELECT limit_date FROM t LIMIT 10"},
		{"trailing comment", "SELECT 1 -- one", 10, "SELECT 1 -- one\nLIMIT 10"},
		{"disabled", "SELECT 1", 0, "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mcp.EnforceLimit(tt.sql, tt.maxRows, "LIMIT"))
		})
	}
}
