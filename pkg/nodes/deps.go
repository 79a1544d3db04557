package nodes

import (
	"context"
	"log/slog"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/guard"
	"github.com/afo-kingdom/chancellor/pkg/ports"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// Deps are the collaborators shared by the nodes. Zero fields get defaults.
type Deps struct {
	Scanner    *guard.Scanner
	Governance ports.GovernanceEvaluator
	Gate       *sovereignty.Gate
	Weights    map[trinity.Pillar]float64
	Verdicts   ports.VerdictSink
	Executor   ports.Executor
	Logger     *slog.Logger

	// MaxInputSize bounds the CMD text. Zero uses guard.MaxInputSize.
	MaxInputSize int

	// OnVerdict is called after MERGE publishes.
	OnVerdict func(context.Context, *domain.VerdictEvent)
}

func (d Deps) withDefaults() Deps {
	if d.Scanner == nil {
		d.Scanner = guard.NewScanner()
	}
	if d.Governance == nil {
		d.Governance = guard.NewPolicyEvaluator(guard.DefaultPolicies()...)
	}
	if d.Gate == nil {
		d.Gate = sovereignty.NewGate(sovereignty.DefaultConfig())
	}
	if d.Weights == nil {
		d.Weights = trinity.DefaultWeights()
	}
	if d.Executor == nil {
		d.Executor = EchoExecutor{}
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return d
}

// Default builds the full pipeline.
func Default(deps Deps) runtime.Nodes {
	deps = deps.withDefaults()
	return runtime.Nodes{
		Cmd:      Cmd(deps),
		Parse:    Parse(deps),
		Truth:    Truth(deps),
		Goodness: Goodness(deps),
		Beauty:   Beauty(deps),
		Merge:    Merge(deps),
		Execute:  Execute(deps),
		Verify:   Verify(deps),
		Report:   Report(deps),
	}
}
