// Package http exposes the Chancellor engine over a JSON API with a
// server-sent event stream of verdicts.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/nodes"
	"github.com/afo-kingdom/chancellor/pkg/ports"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine is the part of chancellor.Engine served over HTTP.
type Engine interface {
	Run(ctx context.Context, input map[string]any) (*domain.GraphState, error)
	Decide(in sovereignty.Input) sovereignty.Ruling
	Gate() sovereignty.Config
	Weights() map[trinity.Pillar]float64
	Checkpoints() ports.CheckpointStore
	Events(ctx context.Context, traceID string) ([]domain.RunEvent, error)
	Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error)
	SubscribeVerdicts(ctx context.Context) (<-chan domain.VerdictEvent, error)
}

// Server holds the HTTP handlers.
type Server struct {
	Engine  Engine
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chancellor/run", s.Run)
		r.Post("/sovereignty/check", s.CheckSovereignty)
		r.Get("/trinity/weights", s.GetWeights)

		r.Get("/checkpoints", s.ListCheckpoints)
		r.Get("/checkpoints/{trace}", s.GetCheckpoint)
		r.Get("/checkpoints/{trace}/{step}", s.GetCheckpoint)
		r.Delete("/checkpoints/{trace}", s.DeleteCheckpoints)

		r.Get("/traces/{trace}/events", s.GetEvents)

		r.Get("/verdicts", s.ListVerdicts)
		r.Get("/verdicts/stream", s.StreamVerdicts)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "chancellor-http",
		"version": strings.TrimSpace(chancellor.Version),
	})
}

// RunResponse is returned by POST /v1/chancellor/run.
type RunResponse struct {
	State   *domain.GraphState `json:"state"`
	Summary map[string]any     `json:"summary"`
}

// Run handles POST /v1/chancellor/run. The body is the raw pipeline input.
// A halted or failed run still answers 200; its errors are in the state.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeBody(r, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	state, err := s.Engine.Run(r.Context(), input)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "run failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, RunResponse{State: state, Summary: nodes.Summarize(state)})
}

// CheckRequest is the body of POST /v1/sovereignty/check.
type CheckRequest struct {
	TraceID       string  `json:"trace_id"`
	TrinityScore  float64 `json:"trinity_score"`
	RiskScore     float64 `json:"risk_score"`
	Gap           float64 `json:"gap"`
	DryRun        bool    `json:"dry_run"`
	ResidualDoubt bool    `json:"residual_doubt"`
}

// CheckResponse is returned by POST /v1/sovereignty/check.
type CheckResponse struct {
	Decision domain.Decision     `json:"decision"`
	RuleID   string              `json:"rule_id"`
	Check    sovereignty.Result  `json:"check"`
	Verdict  domain.VerdictEvent `json:"verdict"`
}

// CheckSovereignty handles POST /v1/sovereignty/check.
// It evaluates the gate only; nothing is published.
func (s *Server) CheckSovereignty(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validateScores(req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scores", err)
		return
	}

	ruling := s.Engine.Decide(sovereignty.Input{
		TraceID:       req.TraceID,
		GraphNodeID:   "API",
		Trinity:       req.TrinityScore,
		Risk:          req.RiskScore,
		Gap:           req.Gap,
		DryRun:        req.DryRun,
		ResidualDoubt: req.ResidualDoubt,
	})
	s.writeJSON(w, http.StatusOK, CheckResponse{
		Decision: ruling.Decision,
		RuleID:   ruling.RuleID,
		Check:    ruling.Check,
		Verdict:  ruling.Event,
	})
}

func validateScores(req CheckRequest) error {
	switch {
	case req.TrinityScore < 0 || req.TrinityScore > 100:
		return fmt.Errorf("trinity_score %v outside [0,100]", req.TrinityScore)
	case req.RiskScore < 0 || req.RiskScore > 100:
		return fmt.Errorf("risk_score %v outside [0,100]", req.RiskScore)
	case req.Gap < 0 || req.Gap > 1:
		return fmt.Errorf("gap %v outside [0,1]", req.Gap)
	}
	return nil
}

// GetWeights handles GET /v1/trinity/weights.
func (s *Server) GetWeights(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"weights":    s.Engine.Weights(),
		"thresholds": s.Engine.Gate(),
	})
}

// ListCheckpoints handles GET /v1/checkpoints.
func (s *Server) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Checkpoints().List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list failed", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"traces": ids})
}

// GetCheckpoint handles GET /v1/checkpoints/{trace}[/{step}].
func (s *Server) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "trace")
	store := s.Engine.Checkpoints()

	var (
		state *domain.GraphState
		err   error
	)
	if name := chi.URLParam(r, "step"); name != "" {
		step, perr := domain.ParseStep(strings.ToUpper(name))
		if perr != nil {
			s.writeError(w, http.StatusBadRequest, "invalid step", perr)
			return
		}
		state, err = store.Load(r.Context(), traceID, step)
	} else {
		state, err = store.Latest(r.Context(), traceID)
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// DeleteCheckpoints handles DELETE /v1/checkpoints/{trace}.
func (s *Server) DeleteCheckpoints(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Checkpoints().Delete(r.Context(), chi.URLParam(r, "trace")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEvents handles GET /v1/traces/{trace}/events.
func (s *Server) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.Engine.Events(r.Context(), chi.URLParam(r, "trace"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// ListVerdicts handles GET /v1/verdicts?trace_id=&limit=.
func (s *Server) ListVerdicts(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}
	verdicts, err := s.Engine.Verdicts(r.Context(), r.URL.Query().Get("trace_id"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "query failed", err)
		return
	}
	if verdicts == nil {
		verdicts = []domain.VerdictEvent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"verdicts": verdicts})
}

// StreamVerdicts handles GET /v1/verdicts/stream (SSE).
// An optional trace_id query parameter filters the stream.
func (s *Server) StreamVerdicts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("StreamVerdicts: streaming not supported")
		return
	}

	verdicts, err := s.Engine.SubscribeVerdicts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "subscribe failed", err)
		return
	}
	traceID := r.URL.Query().Get("trace_id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: verdict subscriber connected", "trace_id", traceID)

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: verdict subscriber disconnected")
			return
		case v, ok := <-verdicts:
			if !ok {
				return
			}
			if traceID != "" && v.TraceID != traceID {
				continue
			}
			data, err := json.Marshal(v)
			if err != nil {
				s.logger.Warn("SSE: failed to encode verdict", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: verdict\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "err", err)
	} else {
		s.logger.Warn(msg, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%s: %v", msg, err)})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound), errors.Is(err, domain.ErrTraceNotFound):
		s.writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, chancellor.ErrUnsupported):
		s.writeError(w, http.StatusNotImplemented, "unsupported", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "storage error", err)
	}
}
