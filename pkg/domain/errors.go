package domain

import "errors"

// ErrCheckpointNotFound is returned when no checkpoint exists for a trace (or step).
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ErrTraceNotFound is returned when an event log has no entries for a trace.
var ErrTraceNotFound = errors.New("trace not found")

// ValueError reports a malformed value inside a node.
type ValueError struct {
	Msg string
}

// NewValueError creates a ValueError.
func NewValueError(msg string) *ValueError {
	return &ValueError{Msg: msg}
}

func (e *ValueError) Error() string { return e.Msg }

// Kind implements the runner's error classification.
func (e *ValueError) Kind() string { return "ValueError" }
