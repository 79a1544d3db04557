package guard

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Policy is one named governance rule. Evaluate returns GovernanceApproved
// when the action passes, or the outcome it forces otherwise.
type Policy struct {
	Name     string
	Evaluate func(ctx context.Context, action domain.ActionContext) (domain.GovernanceOutcome, string)
}

// PolicyEvaluator implements ports.GovernanceEvaluator by running every
// policy and keeping the most severe outcome.
type PolicyEvaluator struct {
	policies []Policy
}

// NewPolicyEvaluator chains policies. With no policies every action is approved.
func NewPolicyEvaluator(policies ...Policy) *PolicyEvaluator {
	return &PolicyEvaluator{policies: policies}
}

// EvaluateAction runs the chain. Unlike an interceptor chain it does not stop
// at the first failure: every policy contributes a check to the decision.
func (e *PolicyEvaluator) EvaluateAction(ctx context.Context, action domain.ActionContext) (domain.GovernanceDecision, error) {
	decision := domain.GovernanceDecision{
		Decision: domain.GovernanceApproved,
		Checks:   make([]domain.PolicyCheck, 0, len(e.policies)),
	}
	var reasons []string

	for _, p := range e.policies {
		if err := ctx.Err(); err != nil {
			return domain.GovernanceDecision{}, err
		}
		outcome, reason := p.Evaluate(ctx, action)
		passed := outcome == "" || outcome == domain.GovernanceApproved
		decision.Checks = append(decision.Checks, domain.PolicyCheck{Policy: p.Name, Passed: passed, Reason: reason})
		if passed {
			continue
		}
		reasons = append(reasons, p.Name+": "+reason)
		if severity(outcome) > severity(decision.Decision) {
			decision.Decision = outcome
		}
	}

	decision.RiskLevel = RiskLevel(decision.Decision)
	decision.Reason = strings.Join(reasons, "; ")
	return decision, nil
}

// RiskLevel maps a governance outcome onto a coarse risk label.
func RiskLevel(outcome domain.GovernanceOutcome) string {
	switch outcome {
	case domain.GovernanceDenied:
		return "high"
	case domain.GovernanceEscalated:
		return "medium"
	}
	return "low"
}

func severity(o domain.GovernanceOutcome) int {
	switch o {
	case domain.GovernanceEscalated:
		return 1
	case domain.GovernanceDenied:
		return 2
	}
	return 0
}

// SecurityPolicy denies actions whose request was blocked or carried a
// threat, and escalates anomalies.
func SecurityPolicy() Policy {
	return Policy{
		Name: "security_clearance",
		Evaluate: func(ctx context.Context, a domain.ActionContext) (domain.GovernanceOutcome, string) {
			switch Status(a.SecurityStatus) {
			case StatusBlocked:
				return domain.GovernanceDenied, "source is blocklisted"
			case StatusThreat:
				return domain.GovernanceDenied, "injection pattern detected"
			case StatusAnomaly:
				return domain.GovernanceEscalated, "request shape is anomalous"
			}
			return domain.GovernanceApproved, ""
		},
	}
}

var destructiveAction = regexp.MustCompile(`(?i)^(delete|drop|destroy|purge|wipe|truncate|shutdown|terminate|revoke|rm)\b`)

// DestructiveActionPolicy escalates irreversible verbs unless dry-run.
func DestructiveActionPolicy() Policy {
	return Policy{
		Name: "destructive_action",
		Evaluate: func(ctx context.Context, a domain.ActionContext) (domain.GovernanceOutcome, string) {
			if a.DryRun || !destructiveAction.MatchString(a.Action) {
				return domain.GovernanceApproved, ""
			}
			return domain.GovernanceEscalated, "irreversible action " + a.Action
		},
	}
}

// ProtectedTargetPolicy escalates anything aimed at a protected target.
func ProtectedTargetPolicy(targets ...string) Policy {
	protected := make([]string, 0, len(targets))
	for _, t := range targets {
		protected = append(protected, strings.ToLower(strings.TrimSpace(t)))
	}
	return Policy{
		Name: "protected_target",
		Evaluate: func(ctx context.Context, a domain.ActionContext) (domain.GovernanceOutcome, string) {
			if slices.Contains(protected, strings.ToLower(strings.TrimSpace(a.Target))) {
				return domain.GovernanceEscalated, "target " + a.Target + " is protected"
			}
			return domain.GovernanceApproved, ""
		},
	}
}

// DeniedTagPolicy denies actions carrying any of the given tags.
func DeniedTagPolicy(tags ...string) Policy {
	return Policy{
		Name: "denied_tag",
		Evaluate: func(ctx context.Context, a domain.ActionContext) (domain.GovernanceOutcome, string) {
			for _, tag := range a.Tags {
				if slices.Contains(tags, tag) {
					return domain.GovernanceDenied, "tag " + tag + " is not allowed"
				}
			}
			return domain.GovernanceApproved, ""
		},
	}
}

// DefaultPolicies is the evaluator chain used when none is configured.
func DefaultPolicies() []Policy {
	return []Policy{
		SecurityPolicy(),
		DestructiveActionPolicy(),
		ProtectedTargetPolicy("production", "prod", "main", "master"),
		DeniedTagPolicy("forbidden"),
	}
}
