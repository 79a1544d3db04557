package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/presentation/tui"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/nodes"
)

// Runner is the part of the engine the run command needs.
type Runner interface {
	Run(ctx context.Context, input map[string]any) (*domain.GraphState, error)
}

// RunOptions configures a single pipeline run from the command line.
type RunOptions struct {
	Text    string
	Input   string
	TraceID string
	Target  string
	Tags    []string
	DryRun  bool
	JSON    bool
	Styled  bool
}

// BuildInput merges the raw JSON payload with the flag values. Flags win.
func BuildInput(opts RunOptions) (map[string]any, error) {
	input := make(map[string]any)
	if opts.Input != "" {
		if err := json.Unmarshal([]byte(opts.Input), &input); err != nil {
			return nil, fmt.Errorf("invalid input json: %w", err)
		}
	}
	if text := strings.TrimSpace(opts.Text); text != "" {
		input["text"] = text
	}
	if opts.TraceID != "" {
		input["trace_id"] = opts.TraceID
	}
	if opts.Target != "" {
		input["target"] = opts.Target
	}
	if len(opts.Tags) > 0 {
		input["tags"] = opts.Tags
	}
	if opts.DryRun {
		input["dry_run"] = true
	}
	if len(input) == 0 {
		return nil, fmt.Errorf("nothing to run: pass a command text or --input")
	}
	return input, nil
}

// RunOnce executes one request and writes the report to w.
func RunOnce(ctx context.Context, eng Runner, opts RunOptions, w io.Writer) (*domain.GraphState, error) {
	input, err := BuildInput(opts)
	if err != nil {
		return nil, err
	}
	state, err := eng.Run(ctx, input)
	if err != nil {
		return state, err
	}
	if opts.JSON {
		return state, writeJSON(w, map[string]any{
			"summary": nodes.Summarize(state),
			"state":   state,
		})
	}
	return state, PrintReport(w, state, opts.Styled)
}

// PrintReport writes the decision badge and the markdown report of a run.
func PrintReport(w io.Writer, state *domain.GraphState, styled bool) error {
	summary := nodes.Summarize(state)
	if decision, _ := summary["decision"].(string); decision != "" {
		fmt.Fprintf(w, "%s %s\n", tui.Badge(w, decision), summary["rule_id"])
	}

	render := tui.NewRenderer(styled)
	out, err := render(nodes.RenderMarkdown(state))
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Fprint(w, out)

	if state.Step != domain.StepReport {
		printSystemMessage(w, "Run stopped at %s: %s", state.Step, state.LastError())
	}
	return nil
}
