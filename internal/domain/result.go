package domain

// ResultStatus is the discriminator of AgentResult.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusPartial ResultStatus = "partial"
	StatusFailure ResultStatus = "failure"
)

// Table is tabular data returned to the caller.
type Table struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// AgentResult is what an agent hands back to the orchestrator.
type AgentResult struct {
	Status     ResultStatus
	Message    string
	SQL        string
	Data       *Table
	Dictionary *Dictionary
	Warnings   []string
	Err        error
}

// Success builds a successful result.
func Success(message string) AgentResult {
	return AgentResult{Status: StatusSuccess, Message: message}
}

// Partial builds a partial-success result carrying warnings.
func Partial(message string, warnings []string) AgentResult {
	return AgentResult{Status: StatusPartial, Message: message, Warnings: warnings}
}

// Failure builds a failed result from a taxonomy error.
func Failure(err error) AgentResult {
	return AgentResult{Status: StatusFailure, Message: err.Error(), Err: err}
}

// WithSQL attaches a statement.
func (r AgentResult) WithSQL(sql string) AgentResult {
	r.SQL = sql
	return r
}

// WithData attaches tabular data.
func (r AgentResult) WithData(t *Table) AgentResult {
	r.Data = t
	return r
}

// WithDictionary attaches a dictionary document.
func (r AgentResult) WithDictionary(d *Dictionary) AgentResult {
	r.Dictionary = d
	return r
}

// QueryRecord is one entry of a session's query history.
type QueryRecord struct {
	Question   string   `json:"question"`
	SQL        string   `json:"sql"`
	RowCount   int      `json:"row_count"`
	Columns    []string `json:"columns,omitempty"`
	Sample     [][]any  `json:"sample,omitempty"`
	ExecutedAt int64    `json:"executed_at"`
}

func (r QueryRecord) clone() QueryRecord {
	c := r
	c.Columns = append([]string(nil), r.Columns...)
	c.Sample = make([][]any, len(r.Sample))
	for i, row := range r.Sample {
		c.Sample[i] = append([]any(nil), row...)
	}
	return c
}
