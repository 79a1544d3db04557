package nodes

import (
	"context"
	"strings"

	"github.com/afo-kingdom/chancellor/internal/runtime"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

// Clarity thresholds for a "clean" request.
const (
	clarityMaxChars = 280
	clarityMaxWords = 48
	clarityCutoff   = 0.6
)

// Clarity scores how clean a request reads, in [0,1].
func Clarity(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	score := 1.0
	if len(text) > clarityMaxChars {
		score -= 0.3
	}
	if len(strings.Fields(text)) > clarityMaxWords {
		score -= 0.3
	}
	for _, noise := range []string{"!!", "??", "...", "  "} {
		if strings.Contains(text, noise) {
			score -= 0.1
		}
	}
	if strings.ToUpper(text) == text && strings.ToLower(text) != text {
		score -= 0.2
	}
	return max(score, 0)
}

// Beauty grades request clarity: ELEGANT_SOLUTION or CLUTTERED_OUTPUT.
func Beauty(deps Deps) runtime.NodeFunc {
	return func(ctx context.Context, s *domain.GraphState) error {
		text := stringField(s.Plan, "text")
		if text == "" {
			text = stringField(s.Plan, "command")
		}
		clarity := Clarity(text)

		trigger := trinity.ElegantSolution
		if clarity < clarityCutoff {
			trigger = trinity.ClutteredOutput
		}
		s.SetOutput(string(domain.StepBeauty), map[string]any{
			"clarity":  clarity,
			"triggers": []string{string(trigger)},
		})
		return nil
	}
}
