package port

import (
	"context"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// CheckpointStore persists the conversation state of each thread between
// turns. Writes are keyed per thread and never need cross-thread
// coordination; retention is not this package's concern.
type CheckpointStore interface {
	// Get returns the last checkpointed state for the thread, or nil
	// when the thread has no history yet.
	Get(ctx context.Context, threadID string) (*domain.ConversationState, error)

	// Put stores the state as the thread's latest checkpoint.
	Put(ctx context.Context, threadID string, state *domain.ConversationState) error
}
