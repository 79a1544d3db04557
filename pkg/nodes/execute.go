package nodes

import (
	"context"
	"fmt"
	"maps"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Execution statuses recorded under Outputs["EXECUTE"].
const (
	StatusExecuted          = "executed"
	StatusAwaitingCommander = "awaiting_commander"
	StatusBlocked           = "blocked"
	StatusDryRun            = "dry_run"
)

// EchoExecutor is the default ports.Executor. It performs nothing and echoes
// the plan back as a successful simulated execution.
type EchoExecutor struct{}

// Execute implements ports.Executor.
func (EchoExecutor) Execute(ctx context.Context, plan map[string]any) (domain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}
	out := maps.Clone(plan)
	out["simulated"] = true
	return domain.ExecutionResult{Success: true, Output: out}, nil
}

// Execute runs the plan when MERGE decided AUTO_RUN and the request is not a
// dry run. Otherwise it records why nothing ran.
func Execute(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		merge, ok := s.Output(string(domain.StepMerge))
		if !ok {
			return domain.NewValueError("no gate decision recorded")
		}

		decision := domain.Decision(stringField(merge, "decision"))
		status := StatusAwaitingCommander
		switch {
		case decision == domain.DecisionBlock:
			status = StatusBlocked
		case boolField(s.Plan, "dry_run"):
			status = StatusDryRun
		case decision == domain.DecisionAutoRun:
			status = StatusExecuted
		}

		if status != StatusExecuted {
			s.SetOutput(string(domain.StepExecute), map[string]any{
				"status":   status,
				"decision": string(decision),
				"executed": false,
			})
			return nil
		}

		result, err := deps.Executor.Execute(ctx, s.Plan)
		if err != nil {
			return fmt.Errorf("executor: %w", err)
		}
		s.SetOutput(string(domain.StepExecute), map[string]any{
			"status":   status,
			"decision": string(decision),
			"executed": true,
			"success":  result.Success,
			"output":   result.Output,
			"error":    result.Error,
		})
		return nil
	}
}

// Verify confirms the execution outcome.
func Verify(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		exec, ok := s.Output(string(domain.StepExecute))
		if !ok {
			return domain.NewValueError("no execution recorded")
		}

		if !boolField(exec, "executed") {
			s.SetOutput(string(domain.StepVerify), map[string]any{
				"verified": false,
				"status":   "skipped",
				"reason":   stringField(exec, "status"),
			})
			return nil
		}

		verified := boolField(exec, "success")
		if !verified {
			s.AddError("execution reported failure: %s", stringField(exec, "error"))
		}
		status := "confirmed"
		if !verified {
			status = "failed"
		}
		s.SetOutput(string(domain.StepVerify), map[string]any{
			"verified": verified,
			"status":   status,
		})
		return nil
	}
}
