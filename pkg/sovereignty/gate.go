// Package sovereignty decides whether an action may run autonomously.
//
// The gate compares a Trinity score, a risk score and a pillar-balance gap
// against fixed thresholds. CheckSovereignty is the pure comparison; Decide
// layers the rule constants (dry-run, residual doubt, hard block) on top and
// produces the VerdictEvent published on the verdict stream.
package sovereignty

import (
	"fmt"
	"strings"
)

// Config holds the gate thresholds.
type Config struct {
	// MinTrinity is the minimum Trinity score (0..100) for autonomy.
	MinTrinity float64 `yaml:"min_trinity" json:"min_trinity"`
	// MaxRisk is the maximum tolerated risk score (0..100).
	MaxRisk float64 `yaml:"max_risk" json:"max_risk"`
	// MaxGap is the exclusive upper bound on the pillar balance gap (0..1).
	MaxGap float64 `yaml:"max_gap" json:"max_gap"`
	// BlockRisk is the risk score at or above which the action is blocked outright.
	BlockRisk float64 `yaml:"block_risk" json:"block_risk"`
}

// DefaultConfig returns the SSOT thresholds.
func DefaultConfig() Config {
	return Config{
		MinTrinity: 90.0,
		MaxRisk:    10.0,
		MaxGap:     0.30,
		BlockRisk:  70.0,
	}
}

// Condition is the outcome of a single threshold comparison.
type Condition struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Pass      bool    `json:"pass"`
}

// Conditions is the per-condition breakdown of a check.
type Conditions struct {
	Trinity Condition `json:"trinity"`
	Risk    Condition `json:"risk"`
	Gap     Condition `json:"gap"`
}

// Result is returned by CheckSovereignty.
type Result struct {
	AllPass    bool       `json:"all_pass"`
	Conditions Conditions `json:"conditions"`
	Verdict    string     `json:"verdict"`
}

// Gate evaluates sovereignty conditions against a Config.
type Gate struct {
	config Config
}

// NewGate creates a gate with config as given. A zero threshold is a real
// threshold; start from DefaultConfig to override single fields.
func NewGate(config Config) *Gate {
	return &Gate{config: config}
}

// Config returns the active thresholds.
func (g *Gate) Config() Config {
	return g.config
}

// CheckSovereignty evaluates the three independent conditions.
func (g *Gate) CheckSovereignty(trinity, risk, gap float64) Result {
	conds := Conditions{
		Trinity: Condition{Value: trinity, Threshold: g.config.MinTrinity, Pass: trinity >= g.config.MinTrinity},
		Risk:    Condition{Value: risk, Threshold: g.config.MaxRisk, Pass: risk <= g.config.MaxRisk},
		Gap:     Condition{Value: gap, Threshold: g.config.MaxGap, Pass: gap < g.config.MaxGap},
	}
	all := conds.Trinity.Pass && conds.Risk.Pass && conds.Gap.Pass

	return Result{
		AllPass:    all,
		Conditions: conds,
		Verdict:    verdictText(conds, all),
	}
}

// Failed returns the names of the conditions that did not pass.
func (c Conditions) Failed() []string {
	var failed []string
	if !c.Trinity.Pass {
		failed = append(failed, "trinity")
	}
	if !c.Risk.Pass {
		failed = append(failed, "risk")
	}
	if !c.Gap.Pass {
		failed = append(failed, "gap")
	}
	return failed
}

func verdictText(c Conditions, all bool) string {
	if all {
		return fmt.Sprintf("SOVEREIGN: trinity %.1f >= %.1f, risk %.1f <= %.1f, gap %.2f < %.2f",
			c.Trinity.Value, c.Trinity.Threshold, c.Risk.Value, c.Risk.Threshold, c.Gap.Value, c.Gap.Threshold)
	}
	return "ASK_COMMANDER: failed " + strings.Join(c.Failed(), ", ")
}
