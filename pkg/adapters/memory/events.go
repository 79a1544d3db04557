package memory

import (
	"context"
	"sync"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// EventLog implements ports.EventLog and ports.EventReader in memory.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.RunEvent
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records an event.
func (l *EventLog) Append(ctx context.Context, event domain.RunEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.State = event.State.Snapshot()
	l.events = append(l.events, event)
	return nil
}

// Events returns the events of a trace in append order.
func (l *EventLog) Events(ctx context.Context, traceID string) ([]domain.RunEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.RunEvent
	for _, ev := range l.events {
		if ev.TraceID == traceID {
			ev.State = ev.State.Snapshot()
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrTraceNotFound
	}
	return out, nil
}

// All returns every recorded event in append order.
func (l *EventLog) All() []domain.RunEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.RunEvent, len(l.events))
	copy(out, l.events)
	return out
}
