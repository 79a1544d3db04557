package runtime

import (
	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Replay rebuilds the latest state of a trace from its event log.
// It returns domain.ErrTraceNotFound when no event carries a snapshot.
func Replay(events []domain.RunEvent) (*domain.GraphState, error) {
	var latest *domain.GraphState
	for _, ev := range events {
		if ev.State != nil {
			latest = ev.State
		}
	}
	if latest == nil {
		return nil, domain.ErrTraceNotFound
	}
	return latest.Snapshot(), nil
}

// Completed reports whether the trace ran every step to the end.
func Completed(events []domain.RunEvent) bool {
	if len(events) == 0 {
		return false
	}
	last := events[len(events)-1]
	return last.Type == domain.EventExit && last.Step == domain.Order[len(domain.Order)-1]
}
