package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// EventLog implements ports.EventLog and ports.EventReader on Redis streams,
// one stream per trace at <prefix><trace_id>.
type EventLog struct {
	client *backend.Client
	prefix string
	maxLen int64
}

// NewEventLog creates a stream-backed event log. maxLen caps each stream
// approximately; zero keeps everything.
func NewEventLog(client *backend.Client, maxLen int64) *EventLog {
	return &EventLog{client: client, prefix: "chancellor_events:", maxLen: maxLen}
}

// Append adds the event to the trace stream.
func (l *EventLog) Append(ctx context.Context, event domain.RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	args := &backend.XAddArgs{
		Stream: l.prefix + event.TraceID,
		Values: map[string]any{"event": data},
	}
	if l.maxLen > 0 {
		args.MaxLen = l.maxLen
		args.Approx = true
	}
	if err := l.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Events reads the whole trace stream.
func (l *EventLog) Events(ctx context.Context, traceID string) ([]domain.RunEvent, error) {
	msgs, err := l.client.XRange(ctx, l.prefix+traceID, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	if len(msgs) == 0 {
		return nil, domain.ErrTraceNotFound
	}

	events := make([]domain.RunEvent, 0, len(msgs))
	for _, msg := range msgs {
		raw, _ := msg.Values["event"].(string)
		var ev domain.RunEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", msg.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
