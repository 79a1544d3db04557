package graph

import (
	"fmt"
	"strings"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Overlay contains run data to visualize on the pipeline.
type Overlay struct {
	Visited []domain.Step
	Current domain.Step
	// Failed is the step that ended the run early, if any.
	Failed domain.Step
}

// OverlayFromEvents derives an Overlay from a trace log.
func OverlayFromEvents(events []domain.RunEvent) *Overlay {
	o := &Overlay{}
	seen := make(map[domain.Step]bool)
	for _, e := range events {
		if e.Type == domain.EventExit && !seen[e.Step] {
			seen[e.Step] = true
			o.Visited = append(o.Visited, e.Step)
		}
		if e.Type.Terminal() {
			o.Failed = e.Step
		}
		o.Current = e.Step
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the pipeline.
// Shapes follow the role of each step:
// - CMD: ((Circle))
// - TRUTH, GOODNESS, BEAUTY: [/Parallelogram/]
// - MERGE: {{Hexagon}}
// - EXECUTE: [[Subroutine]]
// - Default: [Rectangle]
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, step := range domain.Order {
		opener, closer := "[", "]"
		switch step {
		case domain.StepCmd:
			opener, closer = "((", "))"
		case domain.StepTruth, domain.StepGoodness, domain.StepBeauty:
			opener, closer = "[/", "/]"
		case domain.StepMerge:
			opener, closer = "{{", "}}"
		case domain.StepExecute:
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", step, opener, step, closer)
	}

	for i := 1; i < len(domain.Order); i++ {
		from, to := domain.Order[i-1], domain.Order[i]
		arrow := "-->"
		if from == domain.StepMerge {
			arrow = `-- "verdict" -->`
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, to)
	}
	fmt.Fprintf(&sb, "    %s -. \"governance blocked\" .-> HALT((\"halt\"))\n", domain.StepExecute)

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on both light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Step]bool)
		for _, step := range overlay.Visited {
			if step.Valid() && !seen[step] {
				seen[step] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", step)
			}
		}
		switch {
		case overlay.Failed.Valid():
			fmt.Fprintf(&sb, "    class %s failed;\n", overlay.Failed)
		case overlay.Current.Valid():
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}
