package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// Engine is the graph runner. It executes the fixed step order strictly
// sequentially; each call to Run owns its own GraphState.
type Engine struct {
	events            ports.EventLog
	checkpoints       ports.CheckpointStore
	hooks             domain.LifecycleHooks
	logger            *slog.Logger
	stepTimeout       time.Duration
	enforceGovernance bool
	now               func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEventLog sets where run events are appended.
func WithEventLog(log ports.EventLog) EngineOption {
	return func(e *Engine) {
		e.events = log
	}
}

// WithCheckpointStore sets where per-step snapshots are written.
func WithCheckpointStore(store ports.CheckpointStore) EngineOption {
	return func(e *Engine) {
		e.checkpoints = store
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStepTimeout bounds each node invocation. Zero disables the bound.
// Nodes only observe it through their context.
func WithStepTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithGovernanceEnforcement controls whether a governance_blocked flag halts
// the run before EXECUTE (default true). When false the flag is advisory.
func WithGovernanceEnforcement(enabled bool) EngineOption {
	return func(e *Engine) {
		e.enforceGovernance = enabled
	}
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a runner.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:            logging.NewNop(),
		enforceGovernance: true,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline over a fresh GraphState built from input.
//
// A missing node, a failing node or a governance halt ends the run early; the
// returned state then carries the reason in Errors and Step names the step it
// stopped on. The error return is reserved for failures of the event log or
// checkpoint store, which are not guarded. Checkpoints left by an earlier run
// of the same trace id are removed before CMD is entered.
func (e *Engine) Run(ctx context.Context, input map[string]any, nodes Nodes) (*domain.GraphState, error) {
	state := domain.NewGraphState(input)
	logger := e.logger.With("trace_id", state.TraceID)
	logger.InfoContext(ctx, "pipeline started", "request_id", state.RequestID)

	// A reused trace id starts from a clean slate so Latest reflects this run.
	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(ctx, state.TraceID); err != nil {
			return state, fmt.Errorf("failed to reset checkpoints of %s: %w", state.TraceID, err)
		}
	}

	for _, step := range domain.Order {
		state.Step = step
		state.Touch()

		if err := e.emit(ctx, domain.RunEvent{TraceID: state.TraceID, Step: step, Type: domain.EventEnter}); err != nil {
			return state, err
		}

		if err := ctx.Err(); err != nil {
			msg := FormatStepError(step, err)
			state.AddError("%s", msg)
			logger.WarnContext(ctx, "pipeline cancelled", "step", step, "err", err)
			return state, e.record(ctx, state, domain.EventError, msg, 0)
		}

		if step == domain.StepExecute && e.enforceGovernance && state.GovernanceBlocked() {
			msg := "EXECUTE halted: governance blocked"
			state.AddError("%s", msg)
			logger.WarnContext(ctx, "pipeline halted by governance", "step", step)
			return state, e.record(ctx, state, domain.EventHalted, msg, 0)
		}

		fn := nodes.Lookup(step)
		if fn == nil {
			state.AddError("missing node: %s", step)
			logger.ErrorContext(ctx, "missing node", "step", step)
			return state, e.record(ctx, state, domain.EventMissingNode, state.LastError(), 0)
		}

		started := e.now()
		err := e.invoke(ctx, fn, state)
		elapsed := e.now().Sub(started)
		if err != nil {
			msg := FormatStepError(step, err)
			state.AddError("%s", msg)
			logger.WarnContext(ctx, "step failed", "step", step, "err", err)
			return state, e.record(ctx, state, domain.EventError, msg, elapsed)
		}

		logger.DebugContext(ctx, "step completed", "step", step, "duration", elapsed)
		if err := e.record(ctx, state, domain.EventExit, "", elapsed); err != nil {
			return state, err
		}
	}

	logger.InfoContext(ctx, "pipeline completed", "errors", len(state.Errors))
	return state, nil
}

// invoke calls fn, converting a panic into a PanicError.
func (e *Engine) invoke(ctx context.Context, fn NodeFunc, state *domain.GraphState) (err error) {
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx, state)
}

// record emits a step-closing event carrying a snapshot, then checkpoints.
// The two writes are ordered but not atomic; the event log is authoritative.
func (e *Engine) record(ctx context.Context, state *domain.GraphState, typ domain.EventType, msg string, elapsed time.Duration) error {
	snapshot := state.Snapshot()
	event := domain.RunEvent{
		TraceID:  state.TraceID,
		Step:     state.Step,
		Type:     typ,
		Message:  msg,
		Duration: elapsed.Milliseconds(),
		State:    snapshot,
	}
	if err := e.emit(ctx, event); err != nil {
		return err
	}
	if e.checkpoints == nil {
		return nil
	}
	if err := e.checkpoints.Save(ctx, state.TraceID, state.Step, snapshot); err != nil {
		return fmt.Errorf("failed to checkpoint %s at %s: %w", state.TraceID, state.Step, err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, event domain.RunEvent) error {
	event.Timestamp = e.now()

	switch {
	case event.Type == domain.EventEnter:
		if e.hooks.OnStepEnter != nil {
			e.hooks.OnStepEnter(ctx, &event)
		}
	case event.Type == domain.EventExit:
		if e.hooks.OnStepExit != nil {
			e.hooks.OnStepExit(ctx, &event)
		}
	case event.Type.Terminal():
		if e.hooks.OnStepError != nil {
			e.hooks.OnStepError(ctx, &event)
		}
	}

	if e.events == nil {
		return nil
	}
	if err := e.events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event for %s: %w", event.Type, event.Step, err)
	}
	return nil
}
