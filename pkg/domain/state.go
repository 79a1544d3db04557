package domain

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// MetaGovernanceBlocked is the _meta key set by the governance node when an
// action was escalated or denied.
const MetaGovernanceBlocked = "governance_blocked"

// GraphState represents the per-request record threaded through the pipeline.
// It is owned by exactly one run and is never shared between runs.
type GraphState struct {
	TraceID   string `json:"trace_id"`
	RequestID string `json:"request_id"`

	// Step is the stage currently executing (or the one the run halted on).
	Step Step `json:"step"`

	Input map[string]any `json:"input"`
	Plan  map[string]any `json:"plan"`

	// Outputs holds one result per step, keyed by step name.
	Outputs map[string]any `json:"outputs"`

	// Errors is ordered; the runner appends and never rewrites.
	Errors []string `json:"errors"`

	// Meta holds cross-step flags (serialized as "_meta").
	Meta map[string]any `json:"_meta,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGraphState creates a fresh state for an inbound request.
// trace_id and request_id are taken from the input when present.
func NewGraphState(input map[string]any) *GraphState {
	now := time.Now().UTC()
	state := &GraphState{
		TraceID:   stringOr(input, "trace_id", NewID),
		RequestID: stringOr(input, "request_id", NewID),
		Input:     make(map[string]any, len(input)),
		Plan:      make(map[string]any),
		Outputs:   make(map[string]any),
		Errors:    []string{},
		Meta:      make(map[string]any),
		StartedAt: now,
		UpdatedAt: now,
	}
	maps.Copy(state.Input, input)
	return state
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func stringOr(m map[string]any, key string, fallback func() string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback()
}

// AddError appends an error message and refreshes UpdatedAt.
func (s *GraphState) AddError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	s.Touch()
}

// SetOutput stores a step result under its name.
func (s *GraphState) SetOutput(key string, value any) {
	if s.Outputs == nil {
		s.Outputs = make(map[string]any)
	}
	s.Outputs[key] = value
	s.Touch()
}

// Output returns the result map stored under key, if it is a map.
func (s *GraphState) Output(key string) (map[string]any, bool) {
	v, ok := s.Outputs[key].(map[string]any)
	return v, ok
}

// SetMeta sets a cross-step flag.
func (s *GraphState) SetMeta(key string, value any) {
	if s.Meta == nil {
		s.Meta = make(map[string]any)
	}
	s.Meta[key] = value
	s.Touch()
}

// GovernanceBlocked reports whether the governance node flagged this run.
func (s *GraphState) GovernanceBlocked() bool {
	blocked, _ := s.Meta[MetaGovernanceBlocked].(bool)
	return blocked
}

// LastError returns the most recent error, or "" if none.
func (s *GraphState) LastError() string {
	if len(s.Errors) == 0 {
		return ""
	}
	return s.Errors[len(s.Errors)-1]
}

// Touch refreshes UpdatedAt.
func (s *GraphState) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a copy safe to persist while the run keeps mutating s.
// Nested maps are copied recursively; other values are shared.
func (s *GraphState) Snapshot() *GraphState {
	if s == nil {
		return nil
	}
	next := *s
	next.Input = deepCopyMap(s.Input)
	next.Plan = deepCopyMap(s.Plan)
	next.Outputs = deepCopyMap(s.Outputs)
	next.Meta = deepCopyMap(s.Meta)
	next.Errors = slices.Clone(s.Errors)
	if next.Errors == nil {
		next.Errors = []string{}
	}
	return &next
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopyMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return slices.Clone(typed)
	default:
		return v
	}
}
