package ports

import (
	"context"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// GovernanceEvaluator decides whether an action complies with policy.
type GovernanceEvaluator interface {
	EvaluateAction(ctx context.Context, action domain.ActionContext) (domain.GovernanceDecision, error)
}

// Executor performs an approved plan.
type Executor interface {
	Execute(ctx context.Context, plan map[string]any) (domain.ExecutionResult, error)
}
