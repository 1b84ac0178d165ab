package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// deniedKeywords are mutating/administrative SQL verbs that must never
// appear in a machine-generated query.
var deniedKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE",
	"TRUNCATE", "EXEC", "EXECUTE", "GRANT", "REVOKE",
}

// SQLExecutor validates machine-generated SQL against a read-only policy
// before running it. Validation failures and execution errors are reported
// in the result, never raised.
type SQLExecutor struct {
	runner port.SQLRunner
}

// NewSQLExecutor creates an executor over the given record store runner.
func NewSQLExecutor(runner port.SQLRunner) *SQLExecutor {
	return &SQLExecutor{runner: runner}
}

// Validate applies the safety policy in order; the first failure wins.
// Only single-statement SELECT queries pass.
func (e *SQLExecutor) Validate(query string) error {
	upper := strings.ToUpper(strings.TrimSpace(query))

	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("only SELECT queries are allowed")
	}

	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			return fmt.Errorf("dangerous keyword '%s' is not allowed", keyword)
		}
	}

	// A single trailing terminator is fine; anything else smells like a
	// multi-statement injection attempt.
	terminators := strings.Count(upper, ";")
	if terminators > 1 || (terminators == 1 && !strings.HasSuffix(strings.TrimRight(upper, " \t\n"), ";")) {
		return fmt.Errorf("multiple statements are not allowed")
	}

	return nil
}

// Execute validates and runs the query. The returned result is always
// well-formed: on any failure the rows are empty and Error carries the
// reason. Execution errors are reported, not retried.
func (e *SQLExecutor) Execute(ctx context.Context, query string) *domain.QueryResult {
	if err := e.Validate(query); err != nil {
		slog.Warn("SQL validation failed", "error", err)
		return &domain.QueryResult{Rows: []map[string]any{}, Columns: []string{}, Error: err.Error()}
	}

	columns, rows, err := e.runner.RunQuery(ctx, query)
	if err != nil {
		slog.Error("SQL execution failed", "error", err)
		return &domain.QueryResult{Rows: []map[string]any{}, Columns: []string{}, Error: err.Error()}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if columns == nil {
		columns = []string{}
	}

	slog.Info("SQL executed", "rows", len(rows))
	return &domain.QueryResult{Rows: rows, RowCount: len(rows), Columns: columns}
}
