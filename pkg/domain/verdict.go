package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Decision is the outcome of the sovereignty gate.
type Decision string

const (
	DecisionAutoRun      Decision = "AUTO_RUN"
	DecisionAskCommander Decision = "ASK_COMMANDER"
	DecisionBlock        Decision = "BLOCK"
)

// VerdictDecision is the decision as recorded on the verdict stream.
type VerdictDecision string

const (
	VerdictAutoRun VerdictDecision = "AUTO_RUN"
	VerdictAsk     VerdictDecision = "ASK"
)

// Verdict maps a gate decision onto the two-valued verdict stream.
// Anything that is not an autonomous run requires the Commander.
func (d Decision) Verdict() VerdictDecision {
	if d == DecisionAutoRun {
		return VerdictAutoRun
	}
	return VerdictAsk
}

// VerdictFlags qualify a verdict.
type VerdictFlags struct {
	DryRun        bool `json:"dry_run"`
	ResidualDoubt bool `json:"residual_doubt"`
}

// VerdictEvent is the immutable record of one gating decision.
type VerdictEvent struct {
	TraceID      string
	GraphNodeID  string
	Step         int
	Decision     VerdictDecision
	RuleID       string
	TrinityScore float64
	RiskScore    float64
	Flags        VerdictFlags
	Timestamp    time.Time
	Extra        map[string]any
}

// ToMap returns the wire representation of the event.
// trinity_score is rounded to two decimals, risk_score is kept raw, and
// extra is only present when non-empty.
func (v VerdictEvent) ToMap() map[string]any {
	out := map[string]any{
		"trace_id":      v.TraceID,
		"graph_node_id": v.GraphNodeID,
		"step":          v.Step,
		"decision":      string(v.Decision),
		"rule_id":       v.RuleID,
		"trinity_score": math.Round(v.TrinityScore*100) / 100,
		"risk_score":    v.RiskScore,
		"flags": map[string]any{
			"dry_run":        v.Flags.DryRun,
			"residual_doubt": v.Flags.ResidualDoubt,
		},
		"timestamp": v.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if len(v.Extra) > 0 {
		out["extra"] = v.Extra
	}
	return out
}

// ToJSON serializes the event to its wire form.
func (v VerdictEvent) ToJSON() (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal verdict: %w", err)
	}
	return string(data), nil
}

// MarshalJSON implements json.Marshaler.
func (v VerdictEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToMap())
}

type verdictWire struct {
	TraceID      string          `json:"trace_id"`
	GraphNodeID  string          `json:"graph_node_id"`
	Step         int             `json:"step"`
	Decision     VerdictDecision `json:"decision"`
	RuleID       string          `json:"rule_id"`
	TrinityScore float64         `json:"trinity_score"`
	RiskScore    float64         `json:"risk_score"`
	Flags        VerdictFlags    `json:"flags"`
	Timestamp    string          `json:"timestamp"`
	Extra        map[string]any  `json:"extra,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *VerdictEvent) UnmarshalJSON(data []byte) error {
	var wire verdictWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid verdict timestamp %q: %w", wire.Timestamp, err)
	}
	*v = VerdictEvent{
		TraceID:      wire.TraceID,
		GraphNodeID:  wire.GraphNodeID,
		Step:         wire.Step,
		Decision:     wire.Decision,
		RuleID:       wire.RuleID,
		TrinityScore: wire.TrinityScore,
		RiskScore:    wire.RiskScore,
		Flags:        wire.Flags,
		Timestamp:    ts,
		Extra:        wire.Extra,
	}
	return nil
}
