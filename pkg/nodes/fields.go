package nodes

import (
	"encoding/json"
	"strings"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
)

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

// floatField accepts the numeric shapes a state can hold after a JSON round trip.
func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

func stringsField(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// recordedTriggers collects the triggers every scoring step left behind, in
// step order.
func recordedTriggers(s *domain.GraphState) []trinity.Trigger {
	var out []trinity.Trigger
	for _, step := range []domain.Step{domain.StepTruth, domain.StepGoodness, domain.StepBeauty} {
		recorded, ok := s.Output(string(step))
		if !ok {
			continue
		}
		for _, name := range stringsField(recorded, "triggers") {
			out = append(out, trinity.Trigger(strings.ToUpper(name)))
		}
	}
	return out
}

func triggerNames(ts []trinity.Trigger) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}
