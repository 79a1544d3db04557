package domain

import (
	"context"
	"time"
)

// EventType defines the category of a run event.
type EventType string

const (
	EventEnter       EventType = "enter"
	EventExit        EventType = "exit"
	EventError       EventType = "error"
	EventMissingNode EventType = "missing_node"
	EventHalted      EventType = "halted"
)

// Terminal reports whether the event ends a run early.
func (t EventType) Terminal() bool {
	return t == EventError || t == EventMissingNode || t == EventHalted
}

// RunEvent is one entry of the append-only trace log.
// Events other than "enter" carry a snapshot of the state so that the log alone
// is enough to rebuild the latest state of a trace.
type RunEvent struct {
	TraceID   string      `json:"trace_id"`
	Step      Step        `json:"step"`
	Type      EventType   `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Duration  int64       `json:"duration_ms,omitempty"`
	State     *GraphState `json:"state,omitempty"`
}

// LifecycleHooks defines callbacks for pipeline observability.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *RunEvent)
	OnStepExit  func(context.Context, *RunEvent)
	OnStepError func(context.Context, *RunEvent)
	OnVerdict   func(context.Context, *VerdictEvent)
}
