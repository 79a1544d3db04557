package nodes

import (
	"context"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// Merge replays the recorded triggers into a manager owned by this run,
// applies the sovereignty gate and publishes the verdict.
// A publish failure is logged; the decision still stands.
func Merge(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		manager := trinity.NewManagerWithWeights(deps.Weights)
		triggers := recordedTriggers(s)
		for _, t := range triggers {
			if !manager.ApplyTrigger(t) {
				deps.Logger.DebugContext(ctx, "ignoring unknown trigger", "trace_id", s.TraceID, "trigger", t)
			}
		}
		metrics := manager.CurrentMetrics()

		goodness, _ := s.Output(string(domain.StepGoodness))
		truth, _ := s.Output(string(domain.StepTruth))
		risk := floatField(goodness, "risk_score")

		// Doubt lingers when the plan failed verification or an upstream
		// step recorded an error without stopping the run.
		residualDoubt := len(s.Errors) > 0 || (truth != nil && !boolField(truth, "valid"))

		ruling := deps.Gate.Decide(sovereignty.Input{
			TraceID:       s.TraceID,
			GraphNodeID:   string(domain.StepMerge),
			Step:          domain.StepMerge.Index(),
			Trinity:       metrics.Score100(),
			Risk:          risk,
			Gap:           metrics.Gap(),
			DryRun:        boolField(s.Plan, "dry_run"),
			ResidualDoubt: residualDoubt,
			Extra: map[string]any{
				"triggers": triggerNames(manager.Applied()),
			},
		})

		published := true
		if deps.Verdicts != nil {
			if err := deps.Verdicts.Publish(ctx, ruling.Event); err != nil {
				published = false
				deps.Logger.WarnContext(ctx, "failed to publish verdict", "trace_id", s.TraceID, "err", err)
			}
		}
		if deps.OnVerdict != nil {
			deps.OnVerdict(ctx, &ruling.Event)
		}

		s.SetMeta("decision", string(ruling.Decision))
		s.SetOutput(string(domain.StepMerge), map[string]any{
			"decision":      string(ruling.Decision),
			"rule_id":       ruling.RuleID,
			"trinity_score": metrics.Score100(),
			"risk_score":    risk,
			"gap":           metrics.Gap(),
			"all_pass":      ruling.Check.AllPass,
			"check":         ruling.Check.Verdict,
			"pillars": map[string]any{
				string(trinity.Truth):    metrics.Truth,
				string(trinity.Goodness): metrics.Goodness,
				string(trinity.Beauty):   metrics.Beauty,
				string(trinity.Serenity): metrics.Serenity,
				string(trinity.Eternity): metrics.Eternity,
			},
			"verdict":   ruling.Event.ToMap(),
			"published": published,
		})
		return nil
	}
}
