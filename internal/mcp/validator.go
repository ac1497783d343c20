package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Rrens/nl2sql/internal/security"
)

// PostgreSQL specific blocked patterns
var PostgresBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pg_read_file`),
	regexp.MustCompile(`(?i)pg_write_file`),
	regexp.MustCompile(`(?i)pg_ls_dir`),
	regexp.MustCompile(`(?i)lo_import`),
	regexp.MustCompile(`(?i)lo_export`),
	regexp.MustCompile(`(?i)\bCOPY\b`),
	regexp.MustCompile(`(?i)dblink`),
}

// MySQL specific blocked patterns
var MysqlBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)LOAD_FILE`),
	regexp.MustCompile(`(?i)\bLOAD\s+DATA\b`),
	regexp.MustCompile(`(?i)INTO\s+OUTFILE`),
	regexp.MustCompile(`(?i)INTO\s+DUMPFILE`),
}

// SQLite specific blocked patterns
var SqliteBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bATTACH\b`),
	regexp.MustCompile(`(?i)\bDETACH\b`),
	regexp.MustCompile(`(?i)load_extension`),
	regexp.MustCompile(`(?i)\bPRAGMA\b`),
}

// Snowflake specific blocked patterns
var SnowflakeBlockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bPUT\s+file:`),
	regexp.MustCompile(`(?i)\bGET\s+@`),
	regexp.MustCompile(`(?i)\bREMOVE\s+@`),
	regexp.MustCompile(`(?i)\bUNDROP\b`),
	regexp.MustCompile(`(?i)\bUSE\s+(ROLE|WAREHOUSE|DATABASE|SCHEMA)\b`),
	regexp.MustCompile(`(?i)SYSTEM\$`),
}

// NewValidator returns the read-only checker for a dialect's extra patterns.
func NewValidator(patterns []*regexp.Regexp) *security.ReadOnlyChecker {
	return security.NewReadOnlyChecker(patterns...)
}

// ValidateSQL validates SQL for safety
func ValidateSQL(sql string, additionalPatterns []*regexp.Regexp) error {
	return NewValidator(additionalPatterns).Check(sql)
}

var (
	limitClause    = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	limitableStart = regexp.MustCompile(`(?i)^\s*\(?\s*(SELECT|WITH)\b`)
)

// EnforceLimit appends a row limit to SELECT and WITH statements that have none.
func EnforceLimit(sql string, maxRows int, limitKeyword string) string {
	if maxRows <= 0 || !limitableStart.MatchString(sql) || limitClause.MatchString(sql) {
		return sql
	}

	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	sep := " "
	if strings.Contains(sql, "--") {
		sep = "\n"
	}
	return fmt.Sprintf("%s%s%s %d", sql, sep, limitKeyword, maxRows)
}
