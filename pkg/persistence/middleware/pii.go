package middleware

import (
	"context"
	"regexp"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

// DefaultPIIPatterns match the key names masked when none are configured.
var DefaultPIIPatterns = []string{
	`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)api[_-]?key`, `(?i)ssn`, `(?i)e-?mail`,
}

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the
// patterns in Input, Plan, Outputs and Meta before they are persisted.
// Masking is one-way: loads return what was stored.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error {
	// Mask a copy; the run keeps using the original.
	cloned := state.Snapshot()
	for _, section := range []map[string]any{cloned.Input, cloned.Plan, cloned.Outputs, cloned.Meta} {
		maskMap(section, m.patterns)
	}
	return m.next.Save(ctx, traceID, step, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	return m.next.Load(ctx, traceID, step)
}

func (m *piiMiddleware) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	return m.next.Latest(ctx, traceID)
}

func (m *piiMiddleware) Delete(ctx context.Context, traceID string) error {
	return m.next.Delete(ctx, traceID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}

		switch typed := v.(type) {
		case map[string]any:
			maskMap(typed, patterns)
		case []any:
			for _, item := range typed {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}
