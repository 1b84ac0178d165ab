package domain

// ConversationState is the per-turn state owned by the agent. It is mutated
// node-by-node during one turn and checkpointed at turn boundaries keyed by
// thread id. Every branch terminates with a well-formed state; request-scoped
// failures land in Error instead of being thrown.
type ConversationState struct {
	Query      string  `json:"query"`
	Route      Route   `json:"route,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasons    string  `json:"reasons,omitempty"`

	// Last queries of the thread, bounded by the configured history size.
	History []string `json:"history,omitempty"`

	// T2SQL branch
	SQL     string           `json:"sql,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Columns []string         `json:"columns,omitempty"`

	// RAG branch
	Answer  string   `json:"answer,omitempty"`
	Sources []Source `json:"sources,omitempty"`

	Error string `json:"error,omitempty"`
}

// QueryResult is the outcome of executing a validated SQL query. Execution
// errors are reported here, not retried and not raised.
type QueryResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Columns  []string         `json:"columns"`
	Error    string           `json:"error,omitempty"`
}
