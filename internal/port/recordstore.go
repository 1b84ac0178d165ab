package port

import "context"

// SQLRunner executes an already-validated read-only SQL query against the
// record store and returns the rows with their column order. It raises on
// execution error; translating that into a reported (not thrown) result is
// the executor's job.
type SQLRunner interface {
	RunQuery(ctx context.Context, query string) (columns []string, rows []map[string]any, err error)
}
