package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// CheckpointStore persists per-thread conversation state as JSONB rows.
// Writes are keyed by thread id, so concurrent threads never contend.
type CheckpointStore struct {
	store *PostgresStore
}

// NewCheckpointStore creates a checkpoint store backed by the given Postgres store.
func NewCheckpointStore(store *PostgresStore) *CheckpointStore {
	return &CheckpointStore{store: store}
}

// Get returns the thread's last checkpointed state, or nil when the thread
// is new.
func (c *CheckpointStore) Get(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	var raw []byte
	err := c.store.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

// Put stores the state as the thread's latest checkpoint.
func (c *CheckpointStore) Put(ctx context.Context, threadID string, state *domain.ConversationState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO conversation_checkpoints (thread_id, state, updated_at)
		 VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (thread_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`,
		threadID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}
