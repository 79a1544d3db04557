package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// EventLog implements ports.EventLog and ports.EventReader with one
// JSON-lines file per trace at <BasePath>/<trace_id>.jsonl.
type EventLog struct {
	BasePath string
	appender
}

// NewEventLog creates an EventLog rooted at basePath.
// If basePath is empty, it defaults to ".chancellor/traces".
func NewEventLog(basePath string) *EventLog {
	if basePath == "" {
		basePath = filepath.Join(".chancellor", "traces")
	}
	return &EventLog{BasePath: basePath}
}

func (l *EventLog) path(traceID string) string {
	return filepath.Join(l.BasePath, traceID+".jsonl")
}

// Append writes one event line.
func (l *EventLog) Append(ctx context.Context, event domain.RunEvent) error {
	if err := validTraceID(event.TraceID); err != nil {
		return err
	}
	return l.write(l.path(event.TraceID), event)
}

// Events reads the trace file back.
func (l *EventLog) Events(ctx context.Context, traceID string) ([]domain.RunEvent, error) {
	if err := validTraceID(traceID); err != nil {
		return nil, err
	}

	var events []domain.RunEvent
	err := readLines(l.path(traceID), func(line []byte) error {
		var ev domain.RunEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, ev)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, domain.ErrTraceNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrTraceNotFound
	}
	return events, nil
}
