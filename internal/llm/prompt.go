package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const sqlSystemPrompt = "You are an expert SQL query generator. Respond with ONLY the SQL query, no explanations or markdown formatting."

const classifySystemPrompt = "You route messages for a database assistant. Answer with exactly one word."

const describeSystemPrompt = "You document database columns for business users. Respond with JSON only."

// HistoryTurn is a previous question and the statement that answered it.
type HistoryTurn struct {
	Question string
	SQL      string
	RowCount int
}

// SQLRequest contains text-to-SQL generation parameters
type SQLRequest struct {
	Question      string
	SchemaContext string
	Dialect       string
	DatabaseType  string
	History       []HistoryTurn
}

// BuildSQLPrompt creates a prompt for SQL generation
func BuildSQLPrompt(req SQLRequest) string {
	var history strings.Builder
	if len(req.History) > 0 {
		history.WriteString("\n\nPrevious questions in this conversation (most recent first):\n")
		for _, h := range req.History {
			fmt.Fprintf(&history, "Question: %s\nSQL: %s\nRows: %d\n\n", h.Question, h.SQL, h.RowCount)
		}
	}

	return fmt.Sprintf(`You are an expert SQL query generator for %s databases.

%s

Rules:
1. Generate ONLY the SQL query, no explanations or markdown
2. Use only SELECT statements (no INSERT, UPDATE, DELETE, DROP, etc.)
3. Always include appropriate LIMIT clauses for safety
4. Use only tables and columns from the provided schema
5. Handle NULL values appropriately
6. Use proper date/time functions for the database dialect
7. Prefer explicit column names over SELECT *
8. Use fully qualified table names when the schema lists them

Database Schema:
%s%s
Question: %s

SQL:`, req.DatabaseType, req.Dialect, req.SchemaContext, history.String(), req.Question)
}

// IntentLabel is the one-word answer of the classification prompt.
type IntentLabel string

const (
	LabelConnection  IntentLabel = "connection"
	LabelQuery       IntentLabel = "query"
	LabelExploration IntentLabel = "exploration"
	LabelDictionary  IntentLabel = "dictionary"
	LabelHelp        IntentLabel = "help"
)

var intentLabels = []IntentLabel{LabelConnection, LabelQuery, LabelExploration, LabelDictionary, LabelHelp}

// BuildClassifyPrompt asks the model to label a user message.
func BuildClassifyPrompt(message string) string {
	return fmt.Sprintf(`Classify the user's message into one category:

connection  - connecting to or disconnecting from a database, or checking the connection
exploration - listing databases, schemas or tables, selecting tables, describing a table
dictionary  - generating, loading or saving a data dictionary
query       - a question about the data that needs a SQL query
help        - anything else

Message: %s

Answer with one word: connection, query, exploration, dictionary or help.`, message)
}

// ParseIntentLabel finds the first known label in a model answer.
func ParseIntentLabel(text string) (IntentLabel, bool) {
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!\"'`*")
		for _, label := range intentLabels {
			if word == string(label) {
				return label, true
			}
		}
	}
	return "", false
}

// ColumnSample describes a column sent for documentation.
type ColumnSample struct {
	Name         string
	Type         string
	SampleValues []string
}

// DescribeRequest asks for field descriptions of one table.
type DescribeRequest struct {
	Table    string
	RowCount *int64
	Columns  []ColumnSample
}

// FieldDescription is the generated documentation of one column.
type FieldDescription struct {
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	BusinessRules []string `json:"business_rules"`
}

// BuildDescribePrompt asks for JSON field descriptions of one table.
func BuildDescribePrompt(req DescribeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s\n", req.Table)
	if req.RowCount != nil {
		fmt.Fprintf(&b, "Row count: %d\n", *req.RowCount)
	}
	b.WriteString("Columns:\n")
	for _, c := range req.Columns {
		fmt.Fprintf(&b, "- %s (%s)", c.Name, c.Type)
		if len(c.SampleValues) > 0 {
			fmt.Fprintf(&b, " samples: %s", strings.Join(c.SampleValues, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Describe every column in 15 words or less. Use the sample values to infer business meaning.
Category is one of: identifier, dimension, measure, timestamp, attribute.

Respond with a JSON object of this shape and nothing else:
{"columns": {"COLUMN_NAME": {"description": "...", "category": "...", "business_rules": ["..."]}}}`)

	return b.String()
}

// ParseFieldDescriptions decodes the answer to BuildDescribePrompt. Keys of the
// returned map are lower-cased column names.
func ParseFieldDescriptions(text string) (map[string]FieldDescription, error) {
	body := extractJSONObject(text)
	if body == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var wrapped struct {
		Columns map[string]FieldDescription `json:"columns"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode field descriptions: %w", err)
	}

	fields := wrapped.Columns
	if len(fields) == 0 {
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode field descriptions: %w", err)
		}
	}

	out := make(map[string]FieldDescription, len(fields))
	for name, desc := range fields {
		if strings.TrimSpace(desc.Description) == "" {
			continue
		}
		out[strings.ToLower(name)] = desc
	}
	return out, nil
}

// BuildExplainPrompt asks for a short explanation of a failed statement.
func BuildExplainPrompt(question, sql, failure string) string {
	return fmt.Sprintf(`A SQL query generated for the question below failed.

Question: %s
SQL: %s
Error: %s

Explain the likely cause in two sentences or less for a non-technical user.`, question, sql, failure)
}

// ExtractSQL extracts SQL from LLM response
func ExtractSQL(content string) string {
	if sql, ok := extractFromCodeBlock(content, "```sql"); ok {
		return sql
	}
	if sql, ok := extractFromCodeBlock(content, "```"); ok {
		return sql
	}
	return trimSQL(content)
}

func extractFromCodeBlock(content, startMarker string) (string, bool) {
	_, rest, found := strings.Cut(content, startMarker)
	if !found {
		return "", false
	}
	rest = strings.TrimPrefix(rest, "\n")

	body, _, found := strings.Cut(rest, "```")
	if !found {
		return "", false
	}
	return trimSQL(body), true
}

func trimSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

func extractJSONObject(text string) string {
	if body, ok := extractFromCodeBlock(text, "```json"); ok {
		text = body
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
