// Package sqlite persists the Chancellor trace log, checkpoints and verdict
// provenance in a single SQLite database (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id    TEXT NOT NULL,
	step        TEXT NOT NULL,
	event       TEXT NOT NULL,
	message     TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	state_json  TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_trace ON events(trace_id, id);

CREATE TABLE IF NOT EXISTS checkpoints (
	trace_id    TEXT NOT NULL,
	step        TEXT NOT NULL,
	step_index  INTEGER NOT NULL,
	state_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (trace_id, step)
);

CREATE TABLE IF NOT EXISTS verdicts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id       TEXT NOT NULL,
	graph_node_id  TEXT NOT NULL,
	step           INTEGER NOT NULL,
	decision       TEXT NOT NULL,
	rule_id        TEXT NOT NULL,
	trinity_score  REAL NOT NULL,
	risk_score     REAL NOT NULL,
	dry_run        INTEGER NOT NULL,
	residual_doubt INTEGER NOT NULL,
	extra_json     TEXT,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_trace ON verdicts(trace_id, id);
`

// Store implements ports.CheckpointStore, ports.EventLog, ports.EventReader
// and ports.VerdictLog over one database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; WAL lets readers proceed.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Save upserts the snapshot of (traceID, step).
func (s *Store) Save(ctx context.Context, traceID string, step domain.Step, state *domain.GraphState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (trace_id, step, step_index, state_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id, step) DO UPDATE SET
		   state_json = excluded.state_json, updated_at = excluded.updated_at`,
		traceID, string(step), step.Index(), string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load reads one snapshot.
func (s *Store) Load(ctx context.Context, traceID string, step domain.Step) (*domain.GraphState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE trace_id = ? AND step = ?`, traceID, string(step))
	return scanState(row)
}

// Latest reads the snapshot with the highest step index.
func (s *Store) Latest(ctx context.Context, traceID string) (*domain.GraphState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM checkpoints WHERE trace_id = ? ORDER BY step_index DESC LIMIT 1`, traceID)
	return scanState(row)
}

// Delete removes every checkpoint of the trace.
func (s *Store) Delete(ctx context.Context, traceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE trace_id = ?`, traceID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}

// List returns traces with checkpoints.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT trace_id FROM checkpoints ORDER BY trace_id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	traces := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		traces = append(traces, id)
	}
	return traces, rows.Err()
}

func scanState(row *sql.Row) (*domain.GraphState, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var state domain.GraphState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
