// Package mcp exposes the Chancellor engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/internal/presentation/graph"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/nodes"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PipelineURI is the resource describing the pipeline.
const PipelineURI = "chancellor://pipeline"

// RunResponse is the structured result of run_chancellor.
type RunResponse struct {
	TraceID      string   `json:"trace_id" jsonschema_description:"Trace id of the run"`
	Step         string   `json:"step" jsonschema_description:"Last step reached"`
	Decision     string   `json:"decision" jsonschema_description:"Gate decision: AUTO_RUN, ASK_COMMANDER or BLOCK"`
	RuleID       string   `json:"rule_id" jsonschema_description:"Rule that produced the decision"`
	TrinityScore float64  `json:"trinity_score" jsonschema_description:"Trinity score (0..100)"`
	RiskScore    float64  `json:"risk_score" jsonschema_description:"Risk score (0..100)"`
	Execution    string   `json:"execution" jsonschema_description:"Execution status"`
	Errors       []string `json:"errors" jsonschema_description:"Errors recorded by the run"`
	Report       string   `json:"report" jsonschema_description:"Markdown report"`
}

// CheckResponse is the structured result of check_sovereignty.
type CheckResponse struct {
	Decision string             `json:"decision" jsonschema_description:"Gate decision"`
	RuleID   string             `json:"rule_id" jsonschema_description:"Rule that produced the decision"`
	Check    sovereignty.Result `json:"check" jsonschema_description:"Per-condition breakdown"`
}

// Engine is the part of chancellor.Engine exposed as tools.
type Engine interface {
	Run(ctx context.Context, input map[string]any) (*domain.GraphState, error)
	Decide(in sovereignty.Input) sovereignty.Ruling
	Gate() sovereignty.Config
	Weights() map[trinity.Pillar]float64
	Replay(ctx context.Context, traceID string) (*domain.GraphState, bool, error)
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("chancellor-mcp", strings.TrimSpace(chancellor.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP endpoints on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_chancellor",
		mcp.WithDescription("Run a command through the Chancellor pipeline and return the gating decision."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The command or request text")),
		mcp.WithString("source", mcp.Description("Who or what issued the request")),
		mcp.WithString("target", mcp.Description("Explicit target of the action")),
		mcp.WithString("trace_id", mcp.Description("Trace id to use (generated when omitted)")),
		mcp.WithString("tags", mcp.Description("Comma separated tags")),
		mcp.WithBoolean("dry_run", mcp.Description("Plan only; never execute")),
		mcp.WithOutputSchema[RunResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRun))

	checkTool := mcp.NewTool("check_sovereignty",
		mcp.WithDescription("Evaluate the sovereignty gate for given scores without running the pipeline."),
		mcp.WithNumber("trinity_score", mcp.Required(), mcp.Description("Trinity score, 0..100")),
		mcp.WithNumber("risk_score", mcp.Required(), mcp.Description("Risk score, 0..100")),
		mcp.WithNumber("gap", mcp.Description("Pillar balance gap, 0..1")),
		mcp.WithBoolean("dry_run", mcp.Description("Treat the action as a dry run")),
		mcp.WithBoolean("residual_doubt", mcp.Description("Flag unresolved doubt")),
		mcp.WithOutputSchema[CheckResponse](),
	)
	s.mcpServer.AddTool(checkTool, mcp.NewStructuredToolHandler(s.handleCheck))

	s.mcpServer.AddTool(mcp.NewTool("trinity_weights",
		mcp.WithDescription("Get the Trinity pillar weights and gate thresholds."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(map[string]any{
			"weights":    s.engine.Weights(),
			"thresholds": s.engine.Gate(),
		})
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("replay_trace",
		mcp.WithDescription("Rebuild the latest state of a past run from its trace log."),
		mcp.WithString("trace_id", mcp.Required(), mcp.Description("Trace id of the run")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		traceID, err := request.RequireString("trace_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, completed, err := s.engine.Replay(ctx, traceID)
		if err != nil {
			if errors.Is(err, domain.ErrTraceNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("trace %s not found", traceID)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("replay failed: %v", err)), nil
		}
		summary := nodes.Summarize(state)
		summary["completed"] = completed
		jsonBytes, _ := json.Marshal(summary)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	text, _ := args["text"].(string)
	if strings.TrimSpace(text) == "" {
		return RunResponse{}, errors.New("text is required")
	}

	input := map[string]any{"text": text}
	for _, key := range []string{"source", "target", "trace_id"} {
		if v, ok := args[key].(string); ok && v != "" {
			input[key] = v
		}
	}
	if v, ok := args["dry_run"].(bool); ok {
		input["dry_run"] = v
	}
	if v, ok := args["tags"].(string); ok && v != "" {
		var tags []any
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		input["tags"] = tags
	}

	state, err := s.engine.Run(ctx, input)
	if err != nil {
		s.logger.Error("MCP run failed", "err", err)
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}

	summary := nodes.Summarize(state)
	resp := RunResponse{
		TraceID: state.TraceID,
		Step:    string(state.Step),
		Errors:  state.Errors,
		Report:  nodes.RenderMarkdown(state),
	}
	resp.Decision, _ = summary["decision"].(string)
	resp.RuleID, _ = summary["rule_id"].(string)
	resp.TrinityScore, _ = summary["trinity_score"].(float64)
	resp.RiskScore, _ = summary["risk_score"].(float64)
	resp.Execution, _ = summary["execution"].(string)
	return resp, nil
}

func (s *Server) handleCheck(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (CheckResponse, error) {
	trinityScore, ok1 := args["trinity_score"].(float64)
	risk, ok2 := args["risk_score"].(float64)
	if !ok1 || !ok2 {
		return CheckResponse{}, errors.New("trinity_score and risk_score are required numbers")
	}
	gap, _ := args["gap"].(float64)
	dryRun, _ := args["dry_run"].(bool)
	doubt, _ := args["residual_doubt"].(bool)

	ruling := s.engine.Decide(sovereignty.Input{
		GraphNodeID:   "MCP",
		Trinity:       trinityScore,
		Risk:          risk,
		Gap:           gap,
		DryRun:        dryRun,
		ResidualDoubt: doubt,
	})
	return CheckResponse{
		Decision: string(ruling.Decision),
		RuleID:   ruling.RuleID,
		Check:    ruling.Check,
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(PipelineURI, "Chancellor Pipeline",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.pipeline())
		if err != nil {
			return nil, fmt.Errorf("failed to encode pipeline: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      PipelineURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) pipeline() map[string]any {
	return map[string]any{
		"order":      domain.Order,
		"weights":    s.engine.Weights(),
		"thresholds": s.engine.Gate(),
		"mermaid":    graph.GenerateMermaid(nil),
	}
}
