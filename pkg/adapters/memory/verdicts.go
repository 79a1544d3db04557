package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// VerdictLog implements ports.VerdictLog in memory.
type VerdictLog struct {
	mu       sync.RWMutex
	verdicts []domain.VerdictEvent
}

// NewVerdictLog creates an empty verdict log.
func NewVerdictLog() *VerdictLog {
	return &VerdictLog{}
}

// Publish records a verdict.
func (l *VerdictLog) Publish(ctx context.Context, event domain.VerdictEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.Extra = maps.Clone(event.Extra)
	l.verdicts = append(l.verdicts, event)
	return nil
}

// Verdicts returns recorded verdicts, newest last.
func (l *VerdictLog) Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.VerdictEvent
	for _, v := range l.verdicts {
		if traceID == "" || v.TraceID == traceID {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
