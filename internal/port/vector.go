package port

import (
	"context"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// VectorIndex is a persistent, metadata-filterable nearest-neighbor store.
// Upserts are keyed by record id with overwrite semantics, which makes
// content-addressed ingestion idempotent.
type VectorIndex interface {
	// Upsert writes the records and returns the number written.
	Upsert(ctx context.Context, records []domain.VectorRecord) (int, error)

	// Search embeds the query text and returns up to k hits ordered by
	// ascending distance, optionally restricted to one project name
	// (empty = no filter).
	Search(ctx context.Context, query string, k int, projectName string) ([]domain.SearchHit, error)

	// Count returns the total number of records in the index.
	Count(ctx context.Context) (int, error)
}
