package sovereignty

import (
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Rule identifiers recorded on every verdict.
const (
	RuleDryRun        = "R0_DRY_RUN"
	RuleAutoRun       = "R1_AUTO_RUN"
	RuleAskCommander  = "R2_ASK_COMMANDER"
	RuleBlockHighRisk = "R3_BLOCK_HIGH_RISK"
	RuleResidualDoubt = "R4_RESIDUAL_DOUBT"
)

// Input is everything Decide needs for one gating decision.
type Input struct {
	TraceID       string
	GraphNodeID   string
	Step          int
	Trinity       float64
	Risk          float64
	Gap           float64
	DryRun        bool
	ResidualDoubt bool
	Extra         map[string]any
}

// Ruling is the output of Decide.
type Ruling struct {
	Decision domain.Decision     `json:"decision"`
	RuleID   string              `json:"rule_id"`
	Check    Result              `json:"check"`
	Event    domain.VerdictEvent `json:"-"`
}

// Decide applies the rule constants in priority order:
// hard block, dry-run, failed conditions, residual doubt, autonomy.
func (g *Gate) Decide(in Input) Ruling {
	check := g.CheckSovereignty(in.Trinity, in.Risk, in.Gap)

	decision, rule := domain.DecisionAutoRun, RuleAutoRun
	switch {
	case in.Risk >= g.config.BlockRisk:
		decision, rule = domain.DecisionBlock, RuleBlockHighRisk
	case in.DryRun:
		decision, rule = domain.DecisionAskCommander, RuleDryRun
	case !check.AllPass:
		decision, rule = domain.DecisionAskCommander, RuleAskCommander
	case in.ResidualDoubt:
		decision, rule = domain.DecisionAskCommander, RuleResidualDoubt
	}

	extra := make(map[string]any, len(in.Extra)+2)
	for k, v := range in.Extra {
		extra[k] = v
	}
	extra["gap"] = in.Gap
	extra["gate_decision"] = string(decision)

	return Ruling{
		Decision: decision,
		RuleID:   rule,
		Check:    check,
		Event: domain.VerdictEvent{
			TraceID:      in.TraceID,
			GraphNodeID:  in.GraphNodeID,
			Step:         in.Step,
			Decision:     decision.Verdict(),
			RuleID:       rule,
			TrinityScore: in.Trinity,
			RiskScore:    in.Risk,
			Flags:        domain.VerdictFlags{DryRun: in.DryRun, ResidualDoubt: in.ResidualDoubt},
			Timestamp:    time.Now().UTC(),
			Extra:        extra,
		},
	}
}
