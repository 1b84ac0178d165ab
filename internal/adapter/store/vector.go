package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/proplens/go-crm-agent/internal/domain"
	"github.com/proplens/go-crm-agent/internal/port"
)

// VectorIndex stores embedded text records in a pgvector table and serves
// nearest-neighbor search with an optional project_name filter. One index
// instance owns one table (one logical corpus).
//
// Search orders by cosine distance (`<=>`), which is bounded to [0,2].
// Callers that need a similarity score derive it from the distance; if the
// operator ever changes, that derivation must be revisited.
type VectorIndex struct {
	store     *PostgresStore
	ai        port.AIProvider
	table     string
	dimension int
}

// NewVectorIndex creates a vector index over the given table.
func NewVectorIndex(store *PostgresStore, ai port.AIProvider, table string, dimension int) *VectorIndex {
	return &VectorIndex{store: store, ai: ai, table: table, dimension: dimension}
}

// EnsureSchema creates the index table if it does not exist.
func (v *VectorIndex) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		project_name TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}',
		vector vector(%d),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, v.table, v.dimension)
	if _, err := v.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure %s schema: %w", v.table, err)
	}
	return nil
}

// Upsert writes records keyed by id with overwrite semantics and returns
// the number written.
func (v *VectorIndex) Upsert(ctx context.Context, records []domain.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, content, project_name, metadata, vector)
		 VALUES ($1, $2, $3, $4::jsonb, $5::vector)
		 ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			project_name = EXCLUDED.project_name,
			metadata = EXCLUDED.metadata,
			vector = EXCLUDED.vector`, v.table))
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Content, r.ProjectName, string(meta), vectorToString(r.Vector),
		); err != nil {
			return 0, fmt.Errorf("upsert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

// Search embeds the query text and returns up to k hits ordered by
// ascending cosine distance, optionally filtered by project name.
func (v *VectorIndex) Search(ctx context.Context, query string, k int, projectName string) ([]domain.SearchHit, error) {
	queryVector, err := v.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sqlQuery := fmt.Sprintf(
		`SELECT id, content, project_name, metadata, vector <=> $1::vector AS distance
		 FROM %s`, v.table)
	args := []any{vectorToString(queryVector)}
	if projectName != "" {
		sqlQuery += " WHERE project_name = $2"
		args = append(args, projectName)
	}
	sqlQuery += fmt.Sprintf(" ORDER BY distance LIMIT %d", k)

	rows, err := v.store.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []domain.SearchHit
	for rows.Next() {
		var hit domain.SearchHit
		var meta []byte
		if err := rows.Scan(&hit.ID, &hit.Content, &hit.ProjectName, &meta, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", hit.ID, err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Count returns the total number of records in the index.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", v.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", v.table, err)
	}
	return n, nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
