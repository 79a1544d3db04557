package observability

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	StepEvents   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	Verdicts     *prometheus.CounterVec
	TrinityScore prometheus.Histogram
	RiskScore    prometheus.Histogram
}

// Option configures Metrics.
type Option func(*Metrics)

// WithLogger makes the hooks log every event.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Metrics) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(opts ...Option) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logging.NewNop(),
		StepEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chancellor_step_events_total",
				Help: "Pipeline step events by step and event type",
			},
			[]string{"step", "event"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chancellor_step_duration_seconds",
				Help:    "Duration of node executions",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"step"},
		),
		Verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chancellor_verdicts_total",
				Help: "Gating decisions by decision and rule",
			},
			[]string{"decision", "rule_id"},
		),
		TrinityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chancellor_trinity_score",
			Help:    "Trinity score at decision time (0..100)",
			Buckets: prometheus.LinearBuckets(50, 5, 11),
		}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chancellor_risk_score",
			Help:    "Risk score at decision time (0..100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.registry.MustRegister(m.StepEvents, m.StepDuration, m.Verdicts, m.TrinityScore, m.RiskScore)
	return m
}

// Registry exposes the registry, e.g. for tests or extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.RunEvent) {
			m.StepEvents.WithLabelValues(string(e.Step), string(e.Type)).Inc()
			m.logger.DebugContext(ctx, "step_enter", "trace_id", e.TraceID, "step", e.Step)
		},
		OnStepExit: func(ctx context.Context, e *domain.RunEvent) {
			m.StepEvents.WithLabelValues(string(e.Step), string(e.Type)).Inc()
			m.StepDuration.WithLabelValues(string(e.Step)).Observe((time.Duration(e.Duration) * time.Millisecond).Seconds())
			m.logger.DebugContext(ctx, "step_exit", "trace_id", e.TraceID, "step", e.Step, "duration_ms", e.Duration)
		},
		OnStepError: func(ctx context.Context, e *domain.RunEvent) {
			m.StepEvents.WithLabelValues(string(e.Step), string(e.Type)).Inc()
			m.logger.WarnContext(ctx, "step_error", "trace_id", e.TraceID, "step", e.Step, "event", e.Type, "message", e.Message)
		},
		OnVerdict: func(ctx context.Context, v *domain.VerdictEvent) {
			m.Verdicts.WithLabelValues(string(v.Decision), v.RuleID).Inc()
			m.TrinityScore.Observe(v.TrinityScore)
			m.RiskScore.Observe(v.RiskScore)
			m.logger.InfoContext(ctx, "verdict", "trace_id", v.TraceID, "decision", v.Decision, "rule_id", v.RuleID)
		},
	}
}

// Combine merges hook sets; each callback runs every non-nil callback in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnStepEnter = chainEvent(out.OnStepEnter, h.OnStepEnter)
		out.OnStepExit = chainEvent(out.OnStepExit, h.OnStepExit)
		out.OnStepError = chainEvent(out.OnStepError, h.OnStepError)
		out.OnVerdict = chainVerdict(out.OnVerdict, h.OnVerdict)
	}
	return out
}

func chainEvent(a, b func(context.Context, *domain.RunEvent)) func(context.Context, *domain.RunEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.RunEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainVerdict(a, b func(context.Context, *domain.VerdictEvent)) func(context.Context, *domain.VerdictEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, v *domain.VerdictEvent) {
		a(ctx, v)
		b(ctx, v)
	}
}
