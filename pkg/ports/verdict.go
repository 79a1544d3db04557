package ports

import (
	"context"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// VerdictSink receives gating decisions as they are made.
type VerdictSink interface {
	Publish(ctx context.Context, event domain.VerdictEvent) error
}

// VerdictLog is a queryable, append-only VerdictSink.
type VerdictLog interface {
	VerdictSink

	// Verdicts returns recorded verdicts, newest last. An empty traceID
	// returns verdicts of every trace. limit <= 0 means no limit.
	Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error)
}
