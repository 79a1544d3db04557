package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Report renders a markdown summary and a structured one.
func Report(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		summary := Summarize(s)
		s.SetOutput(string(domain.StepReport), map[string]any{
			"markdown": RenderMarkdown(s),
			"summary":  summary,
		})
		return nil
	}
}

// Summarize extracts the headline fields of a run.
func Summarize(s *domain.GraphState) map[string]any {
	merge, _ := s.Output(string(domain.StepMerge))
	exec, _ := s.Output(string(domain.StepExecute))
	verify, _ := s.Output(string(domain.StepVerify))
	errs := make([]string, len(s.Errors))
	copy(errs, s.Errors)
	return map[string]any{
		"trace_id":      s.TraceID,
		"action":        stringField(s.Plan, "action"),
		"decision":      stringField(merge, "decision"),
		"rule_id":       stringField(merge, "rule_id"),
		"trinity_score": floatField(merge, "trinity_score"),
		"risk_score":    floatField(merge, "risk_score"),
		"execution":     stringField(exec, "status"),
		"verified":      boolField(verify, "verified"),
		"errors":        errs,
	}
}

// RenderMarkdown formats a run for humans.
func RenderMarkdown(s *domain.GraphState) string {
	sum := Summarize(s)
	var b strings.Builder

	fmt.Fprintf(&b, "# Chancellor Report\n\n")
	fmt.Fprintf(&b, "- **Trace**: `%s`\n", s.TraceID)
	if action := sum["action"].(string); action != "" {
		fmt.Fprintf(&b, "- **Action**: `%s`\n", action)
	}
	fmt.Fprintf(&b, "- **Decision**: %s (%s)\n", orDash(sum["decision"].(string)), orDash(sum["rule_id"].(string)))
	fmt.Fprintf(&b, "- **Execution**: %s\n\n", orDash(sum["execution"].(string)))

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Trinity | %.2f |\n", sum["trinity_score"])
	fmt.Fprintf(&b, "| Risk | %.2f |\n", sum["risk_score"])
	if merge, ok := s.Output(string(domain.StepMerge)); ok {
		fmt.Fprintf(&b, "| Gap | %.2f |\n", floatField(merge, "gap"))
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
