package domain

// IntentKind selects the agent that handles a message.
type IntentKind string

const (
	IntentConnect            IntentKind = "CONNECT"
	IntentQuery              IntentKind = "QUERY"
	IntentExplore            IntentKind = "EXPLORE"
	IntentDictionaryGenerate IntentKind = "DICTIONARY_GENERATE"
	IntentDictionaryLoad     IntentKind = "DICTIONARY_LOAD"
	IntentDictionarySave     IntentKind = "DICTIONARY_SAVE"
	IntentDictionaryPreview  IntentKind = "DICTIONARY_PREVIEW"
	IntentUnknown            IntentKind = "UNKNOWN"
)

// Action refines an intent kind into a single agent operation.
type Action string

const (
	ActionNone          Action = ""
	ActionConnect       Action = "connect"
	ActionStatus        Action = "status"
	ActionDisconnect    Action = "disconnect"
	ActionListDatabases Action = "list_databases"
	ActionListSchemas   Action = "list_schemas"
	ActionListTables    Action = "list_tables"
	ActionSelectTables  Action = "select_tables"
	ActionDescribeTable Action = "describe_table"
)

// IntentSource records which classification layer produced an intent.
type IntentSource string

const (
	SourcePrefix    IntentSource = "prefix"
	SourceHeuristic IntentSource = "heuristic"
	SourceLLM       IntentSource = "llm"
	SourceFallback  IntentSource = "fallback"
	SourceDirect    IntentSource = "direct"
)

// Slots are values extracted from the message for the selected agent.
type Slots struct {
	Tables    []string `json:"tables,omitempty"`
	Positions []int    `json:"positions,omitempty"`
	All       bool     `json:"all,omitempty"`
	File      string   `json:"file,omitempty"`
	Database  string   `json:"database,omitempty"`
	Schema    string   `json:"schema,omitempty"`
}

// Intent is a per-message classification result. It is never persisted.
type Intent struct {
	Kind   IntentKind   `json:"kind"`
	Action Action       `json:"action,omitempty"`
	Slots  Slots        `json:"slots"`
	Body   string       `json:"body"`
	Source IntentSource `json:"source"`
}
