package cli

import (
	"fmt"
	"io"

	"github.com/afo-kingdom/chancellor/internal/presentation/tui"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// Gatekeeper is the part of the engine the check and weights commands need.
type Gatekeeper interface {
	Decide(in sovereignty.Input) sovereignty.Ruling
	Gate() sovereignty.Config
	Weights() map[trinity.Pillar]float64
}

// CheckOptions are the scores passed to the check command.
type CheckOptions struct {
	Trinity       float64
	Risk          float64
	Gap           float64
	DryRun        bool
	ResidualDoubt bool
	JSON          bool
}

// Check evaluates the gate for the given scores without running a pipeline.
func Check(eng Gatekeeper, opts CheckOptions, w io.Writer) (sovereignty.Ruling, error) {
	if opts.Trinity < 0 || opts.Trinity > 100 {
		return sovereignty.Ruling{}, fmt.Errorf("trinity score must be within [0, 100], got %v", opts.Trinity)
	}
	if opts.Risk < 0 || opts.Risk > 100 {
		return sovereignty.Ruling{}, fmt.Errorf("risk score must be within [0, 100], got %v", opts.Risk)
	}

	ruling := eng.Decide(sovereignty.Input{
		Trinity:       opts.Trinity,
		Risk:          opts.Risk,
		Gap:           opts.Gap,
		DryRun:        opts.DryRun,
		ResidualDoubt: opts.ResidualDoubt,
	})
	if opts.JSON {
		return ruling, writeJSON(w, ruling)
	}

	fmt.Fprintf(w, "%s %s\n", tui.Badge(w, string(ruling.Decision)), ruling.RuleID)
	fmt.Fprintln(w, ruling.Check.Verdict)
	return ruling, nil
}

// PrintWeights writes the Trinity weights and gate thresholds.
func PrintWeights(eng Gatekeeper, w io.Writer) {
	weights := eng.Weights()
	for _, p := range trinity.Pillars {
		fmt.Fprintf(w, "%-10s %.2f\n", p, weights[p])
	}
	g := eng.Gate()
	fmt.Fprintf(w, "\ntrinity >= %.1f, risk <= %.1f, gap < %.2f, block at risk >= %.1f\n",
		g.MinTrinity, g.MaxRisk, g.MaxGap, g.BlockRisk)
}
