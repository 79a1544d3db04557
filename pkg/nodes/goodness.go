package nodes

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/guard"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// Risk contributions on the 0..100 scale.
var (
	securityRisk = map[guard.Status]float64{
		guard.StatusBlocked: 100,
		guard.StatusAnomaly: 20,
	}
	threatRisk = map[guard.Severity]float64{
		guard.SeverityCritical: 90,
		guard.SeverityHigh:     60,
		guard.SeverityMedium:   35,
		guard.SeverityLow:      15,
	}
	governanceRisk = map[domain.GovernanceOutcome]float64{
		domain.GovernanceEscalated: 40,
		domain.GovernanceDenied:    80,
	}
)

// Goodness runs the security scan and the governance evaluation, then derives
// a risk score and the matching triggers.
func Goodness(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		scan := SecurityNode(deps, s)
		decision := GovernanceNode(ctx, deps, s, scan.Status)

		risk := securityRisk[scan.Status]
		if scan.Status == guard.StatusThreat {
			risk = threatRisk[scan.Classification]
		}
		risk = max(risk, governanceRisk[decision.Decision])

		var triggers []string
		switch scan.Status {
		case guard.StatusBlocked, guard.StatusThreat:
			triggers = append(triggers, string(trinity.SecurityThreat))
		case guard.StatusAnomaly:
			triggers = append(triggers, string(trinity.RiskDetected))
		}
		if decision.Decision != domain.GovernanceApproved {
			triggers = append(triggers, string(trinity.GovernanceEscalation))
		}
		if triggers == nil {
			triggers = []string{}
		}

		s.SetOutput(string(domain.StepGoodness), map[string]any{
			"risk_score":          min(risk, 100),
			"security_status":     string(scan.Status),
			"governance_decision": string(decision.Decision),
			"triggers":            triggers,
		})
		return nil
	}
}

// SecurityNode classifies every free-text field of the plan and records
// Outputs["SECURITY"]. A detected threat appends an error but does not stop
// the run.
func SecurityNode(deps Deps, s *domain.GraphState) guard.ScanResult {
	fields, texts := scanFields(s.Plan)

	scan := deps.Scanner.ScanAll(stringField(s.Plan, "source"), texts...)
	if scan.Status == guard.StatusThreat {
		s.AddError("security: threat detected (%s)", scan.Classification)
	}
	out := scan.ToMap()
	out["fields"] = fields
	s.SetOutput(domain.OutputSecurity, out)
	return scan
}

// scanFields lists the plan's free text: text, command when it differs, and
// the string args in key order.
func scanFields(plan map[string]any) ([]string, []string) {
	var fields, texts []string
	add := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fields = append(fields, name)
		texts = append(texts, value)
	}

	text := stringField(plan, "text")
	add("text", text)
	if command := stringField(plan, "command"); command != text {
		add("command", command)
	}
	args, _ := plan["args"].(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(args)) {
		if v, ok := args[key].(string); ok {
			add("args."+key, v)
		}
	}
	if fields == nil {
		fields = []string{}
	}
	return fields, texts
}

// GovernanceNode asks the governance evaluator about the planned action and
// records Outputs["GOVERNANCE"]. An evaluator failure is treated as an
// escalation. Escalated and denied actions set _meta.governance_blocked.
func GovernanceNode(ctx context.Context, deps Deps, s *domain.GraphState, security guard.Status) domain.GovernanceDecision {
	action := domain.ActionContext{
		TraceID:        s.TraceID,
		Action:         stringField(s.Plan, "action"),
		Target:         stringField(s.Plan, "target"),
		Actor:          stringField(s.Plan, "actor"),
		Source:         stringField(s.Plan, "source"),
		DryRun:         boolField(s.Plan, "dry_run"),
		Tags:           stringsField(s.Plan, "tags"),
		SecurityStatus: string(security),
	}

	decision, err := deps.Governance.EvaluateAction(ctx, action)
	if err != nil {
		deps.Logger.WarnContext(ctx, "governance evaluation failed, escalating",
			"trace_id", s.TraceID, "err", err)
		decision = domain.GovernanceDecision{
			Decision:  domain.GovernanceEscalated,
			RiskLevel: guard.RiskLevel(domain.GovernanceEscalated),
			Reason:    fmt.Sprintf("evaluator unavailable: %v", err),
		}
	}

	checks := make([]any, 0, len(decision.Checks))
	for _, c := range decision.Checks {
		checks = append(checks, map[string]any{
			"policy": c.Policy,
			"passed": c.Passed,
			"reason": c.Reason,
		})
	}
	s.SetOutput(domain.OutputGovernance, map[string]any{
		"decision":   string(decision.Decision),
		"risk_level": decision.RiskLevel,
		"reason":     decision.Reason,
		"checks":     checks,
	})

	switch decision.Decision {
	case domain.GovernanceDenied:
		s.AddError("governance denied: %s", decision.Reason)
		s.SetMeta(domain.MetaGovernanceBlocked, true)
	case domain.GovernanceEscalated:
		s.SetMeta(domain.MetaGovernanceBlocked, true)
	}
	return decision
}
