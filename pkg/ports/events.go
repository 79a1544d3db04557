package ports

import (
	"context"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// EventLog appends run events to the trace log.
type EventLog interface {
	Append(ctx context.Context, event domain.RunEvent) error
}

// EventReader reads a trace back in append order.
// Returns domain.ErrTraceNotFound if nothing was recorded for the trace.
type EventReader interface {
	Events(ctx context.Context, traceID string) ([]domain.RunEvent, error)
}
