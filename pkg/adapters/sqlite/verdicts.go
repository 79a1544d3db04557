package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Publish records a verdict in the provenance table.
func (s *Store) Publish(ctx context.Context, v domain.VerdictEvent) error {
	var extra any
	if len(v.Extra) > 0 {
		data, err := json.Marshal(v.Extra)
		if err != nil {
			return fmt.Errorf("marshal verdict extra: %w", err)
		}
		extra = string(data)
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verdicts (trace_id, graph_node_id, step, decision, rule_id, trinity_score, risk_score, dry_run, residual_doubt, extra_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.TraceID, v.GraphNodeID, v.Step, string(v.Decision), v.RuleID, v.TrinityScore, v.RiskScore,
		v.Flags.DryRun, v.Flags.ResidualDoubt, extra, v.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log verdict: %w", err)
	}
	return nil
}

// Verdicts returns recorded verdicts, newest last.
func (s *Store) Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error) {
	query := `SELECT trace_id, graph_node_id, step, decision, rule_id, trinity_score, risk_score, dry_run, residual_doubt, extra_json, created_at
		FROM verdicts WHERE (? = '' OR trace_id = ?) ORDER BY id DESC`
	args := []any{traceID, traceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []domain.VerdictEvent
	for rows.Next() {
		var (
			v       domain.VerdictEvent
			extra   sql.NullString
			created string
		)
		if err := rows.Scan(&v.TraceID, &v.GraphNodeID, &v.Step, &v.Decision, &v.RuleID,
			&v.TrinityScore, &v.RiskScore, &v.Flags.DryRun, &v.Flags.ResidualDoubt, &extra, &created); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		if v.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse verdict time: %w", err)
		}
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &v.Extra); err != nil {
				return nil, fmt.Errorf("unmarshal verdict extra: %w", err)
			}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Stats counts verdicts per rule.
type Stats struct {
	Total       int            `json:"total"`
	ByRule      map[string]int `json:"by_rule"`
	ByDecision  map[string]int `json:"by_decision"`
	MeanTrinity float64        `json:"mean_trinity"`
	MeanRisk    float64        `json:"mean_risk"`
}

// Stats aggregates the provenance table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByRule: map[string]int{}, ByDecision: map[string]int{}}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(trinity_score), 0), COALESCE(AVG(risk_score), 0) FROM verdicts`)
	if err := row.Scan(&st.Total, &st.MeanTrinity, &st.MeanRisk); err != nil {
		return st, fmt.Errorf("verdict totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT rule_id, decision, COUNT(*) FROM verdicts GROUP BY rule_id, decision`)
	if err != nil {
		return st, fmt.Errorf("verdict breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rule, decision string
		var n int
		if err := rows.Scan(&rule, &decision, &n); err != nil {
			return st, fmt.Errorf("scan breakdown: %w", err)
		}
		st.ByRule[rule] += n
		st.ByDecision[decision] += n
	}
	return st, rows.Err()
}
