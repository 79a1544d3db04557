package graph_test

import (
	"strings"
	"testing"

	"github.com/afo-kingdom/chancellor/internal/presentation/graph"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestGenerateMermaid_Pipeline(t *testing.T) {
	golden(t).Assert(t, "pipeline", []byte(graph.GenerateMermaid(nil)))
}

func TestGenerateMermaid_HaltedRun(t *testing.T) {
	var events []domain.RunEvent
	for _, step := range domain.Order[:6] {
		events = append(events,
			domain.RunEvent{Step: step, Type: domain.EventEnter},
			domain.RunEvent{Step: step, Type: domain.EventExit},
		)
	}
	events = append(events,
		domain.RunEvent{Step: domain.StepExecute, Type: domain.EventEnter},
		domain.RunEvent{Step: domain.StepExecute, Type: domain.EventHalted},
	)

	golden(t).Assert(t, "halted_run", []byte(graph.GenerateMermaid(graph.OverlayFromEvents(events))))
}

func TestOverlayFromEvents(t *testing.T) {
	o := graph.OverlayFromEvents([]domain.RunEvent{
		{Step: domain.StepCmd, Type: domain.EventEnter},
		{Step: domain.StepCmd, Type: domain.EventExit},
		{Step: domain.StepParse, Type: domain.EventEnter},
	})
	assert.Equal(t, []domain.Step{domain.StepCmd}, o.Visited)
	assert.Equal(t, domain.StepParse, o.Current)
	assert.Equal(t, domain.Step(""), o.Failed)

	out := graph.GenerateMermaid(o)
	assert.True(t, strings.Contains(out, "class PARSE current;"))
	assert.False(t, strings.Contains(out, "failed;"))
}
