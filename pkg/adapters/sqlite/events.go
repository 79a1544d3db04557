package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Append inserts one event row.
func (s *Store) Append(ctx context.Context, event domain.RunEvent) error {
	var stateJSON any
	if event.State != nil {
		data, err := json.Marshal(event.State)
		if err != nil {
			return fmt.Errorf("marshal event state: %w", err)
		}
		stateJSON = string(data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (trace_id, step, event, message, duration_ms, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.TraceID, string(event.Step), string(event.Type), nullIfEmpty(event.Message),
		event.Duration, stateJSON, event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events reads the trace in insertion order.
func (s *Store) Events(ctx context.Context, traceID string) ([]domain.RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, event, message, duration_ms, state_json, created_at
		 FROM events WHERE trace_id = ? ORDER BY id`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		var (
			step, typ, created string
			message, stateJSON sql.NullString
			duration           int64
		)
		if err := rows.Scan(&step, &typ, &message, &duration, &stateJSON, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		ev := domain.RunEvent{
			TraceID:   traceID,
			Step:      domain.Step(step),
			Type:      domain.EventType(typ),
			Timestamp: ts,
			Message:   message.String,
			Duration:  duration,
		}
		if stateJSON.Valid {
			var state domain.GraphState
			if err := json.Unmarshal([]byte(stateJSON.String), &state); err != nil {
				return nil, fmt.Errorf("unmarshal event state: %w", err)
			}
			ev.State = &state
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrTraceNotFound
	}
	return events, nil
}
