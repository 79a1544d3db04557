package runtime

import (
	"context"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// NodeFunc is the handler for one pipeline step. It inspects and mutates the
// state of the run it belongs to; a returned error terminates the run.
type NodeFunc func(ctx context.Context, state *domain.GraphState) error

// Nodes registers one handler per step. A nil field is a missing node.
type Nodes struct {
	Cmd      NodeFunc
	Parse    NodeFunc
	Truth    NodeFunc
	Goodness NodeFunc
	Beauty   NodeFunc
	Merge    NodeFunc
	Execute  NodeFunc
	Verify   NodeFunc
	Report   NodeFunc
}

// Lookup returns the handler registered for step, or nil.
func (n Nodes) Lookup(step domain.Step) NodeFunc {
	switch step {
	case domain.StepCmd:
		return n.Cmd
	case domain.StepParse:
		return n.Parse
	case domain.StepTruth:
		return n.Truth
	case domain.StepGoodness:
		return n.Goodness
	case domain.StepBeauty:
		return n.Beauty
	case domain.StepMerge:
		return n.Merge
	case domain.StepExecute:
		return n.Execute
	case domain.StepVerify:
		return n.Verify
	case domain.StepReport:
		return n.Report
	}
	return nil
}

// Missing lists the steps with no handler, in pipeline order.
func (n Nodes) Missing() []domain.Step {
	var missing []domain.Step
	for _, step := range domain.Order {
		if n.Lookup(step) == nil {
			missing = append(missing, step)
		}
	}
	return missing
}
