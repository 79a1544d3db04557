package chancellor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/adapters"
	"github.com/afo-kingdom/chancellor/pkg/adapters/memory"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/guard"
	"github.com/afo-kingdom/chancellor/pkg/nodes"
	"github.com/afo-kingdom/chancellor/pkg/ports"
	"github.com/afo-kingdom/chancellor/pkg/session"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// ErrUnsupported is returned when the configured backend cannot serve a query.
var ErrUnsupported = errors.New("operation not supported by the configured backend")

// VerdictSubscriber streams verdicts as they are published.
type VerdictSubscriber interface {
	Subscribe(ctx context.Context) (<-chan domain.VerdictEvent, error)
}

// Engine is the high-level entry point of the pipeline.
// It owns the storage adapters, the node collaborators and the runner.
type Engine struct {
	runtime  *runtime.Engine
	nodes    runtime.Nodes
	sessions *session.Manager

	events      ports.EventLog
	checkpoints ports.CheckpointStore
	verdicts    ports.VerdictLog
	sinks       []ports.VerdictSink
	subscriber  VerdictSubscriber
	broadcast   *memory.Broadcaster
	locker      ports.DistributedLocker

	scanner    *guard.Scanner
	governance ports.GovernanceEvaluator
	executor   ports.Executor
	gate       *sovereignty.Gate
	weights    map[trinity.Pillar]float64

	hooks        domain.LifecycleHooks
	logger       *slog.Logger
	enforce      bool
	stepTimeout  time.Duration
	maxInputSize int

	closers []io.Closer
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEventLog sets the trace log.
func WithEventLog(log ports.EventLog) Option {
	return func(e *Engine) {
		e.events = log
	}
}

// WithCheckpointStore sets the checkpoint store.
func WithCheckpointStore(store ports.CheckpointStore) Option {
	return func(e *Engine) {
		e.checkpoints = store
	}
}

// WithVerdictLog sets the queryable verdict log.
func WithVerdictLog(log ports.VerdictLog) Option {
	return func(e *Engine) {
		e.verdicts = log
	}
}

// WithVerdictSink adds a sink that receives every verdict besides the log.
func WithVerdictSink(sink ports.VerdictSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

// WithVerdictSubscriber sets the source of SubscribeVerdicts.
// Without one, subscribers only see verdicts made by this process.
func WithVerdictSubscriber(sub VerdictSubscriber) Option {
	return func(e *Engine) {
		e.subscriber = sub
	}
}

// WithLocker enables cross-instance locking of trace ids.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithScanner sets the threat scanner used by GOODNESS.
func WithScanner(scanner *guard.Scanner) Option {
	return func(e *Engine) {
		e.scanner = scanner
	}
}

// WithGovernance sets the governance evaluator used by GOODNESS.
func WithGovernance(eval ports.GovernanceEvaluator) Option {
	return func(e *Engine) {
		e.governance = eval
	}
}

// WithExecutor sets the executor used by EXECUTE.
func WithExecutor(exec ports.Executor) Option {
	return func(e *Engine) {
		e.executor = exec
	}
}

// WithGate sets the sovereignty thresholds.
func WithGate(config sovereignty.Config) Option {
	return func(e *Engine) {
		e.gate = sovereignty.NewGate(config)
	}
}

// WithWeights sets the Trinity weights. They are validated by New.
func WithWeights(w map[trinity.Pillar]float64) Option {
	return func(e *Engine) {
		e.weights = maps.Clone(w)
	}
}

// WithGovernanceEnforcement controls whether a governance escalation halts the
// run before EXECUTE (the default) or is only recorded.
func WithGovernanceEnforcement(enabled bool) Option {
	return func(e *Engine) {
		e.enforce = enabled
	}
}

// WithStepTimeout bounds each node invocation.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stepTimeout = d
	}
}

// WithMaxInputSize bounds the CMD text.
func WithMaxInputSize(n int) Option {
	return func(e *Engine) {
		e.maxInputSize = n
	}
}

func withCloser(c io.Closer) Option {
	return func(e *Engine) {
		e.closers = append(e.closers, c)
	}
}

// New initializes an Engine. Unset stores default to memory.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{enforce: true}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.weights == nil {
		eng.weights = trinity.DefaultWeights()
	}
	if err := trinity.ValidateWeights(eng.weights); err != nil {
		return nil, err
	}
	if eng.gate == nil {
		eng.gate = sovereignty.NewGate(sovereignty.DefaultConfig())
	}
	if eng.events == nil {
		eng.events = memory.NewEventLog()
	}
	if eng.checkpoints == nil {
		eng.checkpoints = memory.NewStore()
	}
	if eng.verdicts == nil {
		eng.verdicts = memory.NewVerdictLog()
	}

	eng.broadcast = memory.NewBroadcaster(64, eng.logger)
	if eng.subscriber == nil {
		eng.subscriber = eng.broadcast
	}

	sink := adapters.NewMultiSink(append([]ports.VerdictSink{eng.verdicts, eng.broadcast}, eng.sinks...)...)

	var sessionOpts []session.Option
	sessionOpts = append(sessionOpts, session.WithLogger(eng.logger))
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	eng.sessions = session.NewManager(eng.checkpoints, sessionOpts...)

	eng.nodes = nodes.Default(nodes.Deps{
		Scanner:      eng.scanner,
		Governance:   eng.governance,
		Gate:         eng.gate,
		Weights:      eng.weights,
		Verdicts:     sink,
		Executor:     eng.executor,
		Logger:       eng.logger,
		MaxInputSize: eng.maxInputSize,
		OnVerdict:    eng.hooks.OnVerdict,
	})

	eng.runtime = runtime.NewEngine(
		runtime.WithEventLog(eng.events),
		runtime.WithCheckpointStore(eng.checkpoints),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithStepTimeout(eng.stepTimeout),
		runtime.WithGovernanceEnforcement(eng.enforce),
	)
	return eng, nil
}

// Run executes the pipeline for one request.
// A trace_id is assigned when the input carries none. Runs that share a trace
// id are serialized.
func (e *Engine) Run(ctx context.Context, input map[string]any) (*domain.GraphState, error) {
	in := maps.Clone(input)
	if in == nil {
		in = make(map[string]any)
	}
	traceID, _ := in["trace_id"].(string)
	if traceID == "" {
		traceID = domain.NewID()
		in["trace_id"] = traceID
	}

	var state *domain.GraphState
	err := e.sessions.WithLock(ctx, traceID, func(ctx context.Context) error {
		var err error
		state, err = e.runtime.Run(ctx, in, e.nodes)
		return err
	})
	if err != nil {
		return state, err
	}
	e.logger.Debug("run finished", "trace_id", traceID, "step", state.Step, "errors", len(state.Errors))
	return state, nil
}

// CheckSovereignty evaluates the gate conditions without running the pipeline.
func (e *Engine) CheckSovereignty(trinityScore, risk, gap float64) sovereignty.Result {
	return e.gate.CheckSovereignty(trinityScore, risk, gap)
}

// Decide applies the gate rules without publishing the verdict.
func (e *Engine) Decide(in sovereignty.Input) sovereignty.Ruling {
	return e.gate.Decide(in)
}

// Gate returns the active thresholds.
func (e *Engine) Gate() sovereignty.Config {
	return e.gate.Config()
}

// Weights returns a copy of the Trinity weights.
func (e *Engine) Weights() map[trinity.Pillar]float64 {
	return maps.Clone(e.weights)
}

// Checkpoints returns the checkpoint store.
func (e *Engine) Checkpoints() ports.CheckpointStore {
	return e.checkpoints
}

// Sessions returns the trace manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Events returns the recorded trace of a run.
func (e *Engine) Events(ctx context.Context, traceID string) ([]domain.RunEvent, error) {
	reader, ok := e.events.(ports.EventReader)
	if !ok {
		return nil, fmt.Errorf("reading events: %w", ErrUnsupported)
	}
	return reader.Events(ctx, traceID)
}

// Replay rebuilds the latest state of a trace from its event log and reports
// whether the run reached the end of REPORT.
func (e *Engine) Replay(ctx context.Context, traceID string) (*domain.GraphState, bool, error) {
	events, err := e.Events(ctx, traceID)
	if err != nil {
		return nil, false, err
	}
	state, err := runtime.Replay(events)
	if err != nil {
		return nil, false, err
	}
	return state, runtime.Completed(events), nil
}

// Verdicts queries the verdict log, newest last.
func (e *Engine) Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error) {
	return e.verdicts.Verdicts(ctx, traceID, limit)
}

// SubscribeVerdicts streams verdicts until ctx is done.
func (e *Engine) SubscribeVerdicts(ctx context.Context) (<-chan domain.VerdictEvent, error) {
	return e.subscriber.Subscribe(ctx)
}

// Close releases the backend connections.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}
