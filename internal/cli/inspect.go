package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/afo-kingdom/chancellor/internal/presentation/graph"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// Inspector is the read side of the engine used by the inspection commands.
type Inspector interface {
	Checkpoints() ports.CheckpointStore
	Events(ctx context.Context, traceID string) ([]domain.RunEvent, error)
	Replay(ctx context.Context, traceID string) (*domain.GraphState, bool, error)
	Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error)
	SubscribeVerdicts(ctx context.Context) (<-chan domain.VerdictEvent, error)
}

// ListCheckpoints prints the trace ids that have checkpoints.
func ListCheckpoints(ctx context.Context, eng Inspector, w io.Writer) error {
	traces, err := eng.Checkpoints().List(ctx)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		printSystemMessage(w, "No checkpoints found")
		return nil
	}
	for _, t := range traces {
		fmt.Fprintln(w, t)
	}
	return nil
}

// InspectCheckpoint prints one checkpoint as JSON. An empty step selects the latest.
func InspectCheckpoint(ctx context.Context, eng Inspector, traceID, step string, w io.Writer) error {
	store := eng.Checkpoints()
	var (
		state *domain.GraphState
		err   error
	)
	if step == "" {
		state, err = store.Latest(ctx, traceID)
	} else {
		var s domain.Step
		if s, err = domain.ParseStep(step); err != nil {
			return err
		}
		state, err = store.Load(ctx, traceID, s)
	}
	if err != nil {
		return fmt.Errorf("failed to load checkpoint %s: %w", traceID, err)
	}
	return writeJSON(w, state)
}

// DeleteCheckpoints removes every checkpoint of a trace.
func DeleteCheckpoints(ctx context.Context, eng Inspector, traceID string, w io.Writer) error {
	if err := eng.Checkpoints().Delete(ctx, traceID); err != nil {
		return err
	}
	printSystemMessage(w, "Deleted checkpoints for %s", traceID)
	return nil
}

// ReplayTrace rebuilds a run from its event log and prints the event table
// followed by the reconstructed state.
func ReplayTrace(ctx context.Context, eng Inspector, traceID string, w io.Writer) error {
	events, err := eng.Events(ctx, traceID)
	if err != nil {
		return err
	}
	state, completed, err := eng.Replay(ctx, traceID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTEP\tEVENT\tDURATION\tMESSAGE")
	for i, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, ev.Step, ev.Type, time.Duration(ev.Duration)*time.Millisecond, ev.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printSystemMessage(w, "Completed: %s", strconv.FormatBool(completed))
	return writeJSON(w, state)
}

// ListVerdicts prints recorded verdicts, newest last.
func ListVerdicts(ctx context.Context, eng Inspector, traceID string, limit int, w io.Writer) error {
	verdicts, err := eng.Verdicts(ctx, traceID, limit)
	if err != nil {
		return err
	}
	for _, v := range verdicts {
		printVerdict(w, v)
	}
	return nil
}

// TailVerdicts prints verdicts as they are published until ctx is done.
func TailVerdicts(ctx context.Context, eng Inspector, traceID string, w io.Writer) error {
	ch, err := eng.SubscribeVerdicts(ctx)
	if err != nil {
		return err
	}
	printSystemMessage(w, "Waiting for verdicts (Ctrl+C to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if traceID != "" && v.TraceID != traceID {
				continue
			}
			printVerdict(w, v)
		}
	}
}

func printVerdict(w io.Writer, v domain.VerdictEvent) {
	fmt.Fprintf(w, "%s %s %-5s %-20s trinity=%.1f risk=%.1f %s\n",
		v.Timestamp.Format(time.RFC3339), v.TraceID, v.Decision, v.RuleID, v.TrinityScore, v.RiskScore, v.GraphNodeID)
}

// PrintGraph writes the pipeline as Mermaid, highlighting a trace when given.
func PrintGraph(ctx context.Context, eng Inspector, traceID string, w io.Writer) error {
	var overlay *graph.Overlay
	if traceID != "" {
		events, err := eng.Events(ctx, traceID)
		if err != nil {
			return err
		}
		overlay = graph.OverlayFromEvents(events)
	}
	fmt.Fprint(w, graph.GenerateMermaid(overlay))
	return nil
}
