package domain

// Route is the classification label that decides which handler answers a query.
type Route string

const (
	// RouteRAG answers semantic questions over ingested brochures.
	RouteRAG Route = "rag"
	// RouteT2SQL translates analytics questions into a read-only SQL query.
	RouteT2SQL Route = "t2sql"
	// RouteClarify asks the user to rephrase when classification is unsure.
	RouteClarify Route = "clarify"
)

// RouteDecision is the router's verdict for a single query. Ephemeral:
// it is folded into the conversation state and never stored on its own.
type RouteDecision struct {
	Route      Route   `json:"route"`
	Confidence float64 `json:"confidence"`
	Reasons    string  `json:"reasons"`
}
