package ports

import (
	"context"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// CheckpointStore persists GraphState snapshots.
// Saving the same (traceID, step) pair overwrites the previous blob.
type CheckpointStore interface {
	// Save persists the snapshot for a trace at a given step.
	Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error

	// Load retrieves the snapshot for a trace at a given step.
	// Returns domain.ErrCheckpointNotFound if it does not exist.
	Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error)

	// Latest retrieves the snapshot of the furthest step on record for a trace.
	// It does not know about runs: the engine deletes a trace's checkpoints
	// before reusing its id, and other writers must do the same.
	// Returns domain.ErrCheckpointNotFound if the trace has no checkpoints.
	Latest(ctx context.Context, traceID string) (*domain.GraphState, error)

	// Delete removes every checkpoint of a trace.
	Delete(ctx context.Context, traceID string) error

	// List returns the trace ids that have at least one checkpoint.
	List(ctx context.Context) ([]string, error)
}
