package sovereignty_test

import (
	"testing"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/stretchr/testify/assert"
)

func TestCheckSovereignty_AllPass(t *testing.T) {
	gate := sovereignty.NewGate(sovereignty.DefaultConfig())
	res := gate.CheckSovereignty(95, 5, 0.1)

	assert.True(t, res.AllPass)
	assert.True(t, res.Conditions.Trinity.Pass)
	assert.True(t, res.Conditions.Risk.Pass)
	assert.True(t, res.Conditions.Gap.Pass)
	assert.Contains(t, res.Verdict, "SOVEREIGN")
}

func TestCheckSovereignty_LowTrinity(t *testing.T) {
	gate := sovereignty.NewGate(sovereignty.DefaultConfig())
	res := gate.CheckSovereignty(85, 5, 0.1)

	assert.False(t, res.AllPass)
	assert.False(t, res.Conditions.Trinity.Pass)
	assert.Equal(t, 85.0, res.Conditions.Trinity.Value)
	assert.Equal(t, 90.0, res.Conditions.Trinity.Threshold)
	assert.True(t, res.Conditions.Risk.Pass)
	assert.Equal(t, "ASK_COMMANDER: failed trinity", res.Verdict)
}

func TestCheckSovereignty_Boundaries(t *testing.T) {
	gate := sovereignty.NewGate(sovereignty.DefaultConfig())

	tests := []struct {
		name                string
		trinity, risk, gap  float64
		want                bool
		failedConditionList []string
	}{
		{"exact thresholds on inclusive bounds", 90, 10, 0.29, true, nil},
		{"gap bound is exclusive", 90, 10, 0.30, false, []string{"gap"}},
		{"risk just above", 99, 10.01, 0.0, false, []string{"risk"}},
		{"everything fails", 10, 90, 0.9, false, []string{"trinity", "risk", "gap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := gate.CheckSovereignty(tt.trinity, tt.risk, tt.gap)
			assert.Equal(t, tt.want, res.AllPass)
			assert.Equal(t, tt.failedConditionList, res.Conditions.Failed())
		})
	}
}

func TestNewGate_OverrideFromDefaults(t *testing.T) {
	cfg := sovereignty.DefaultConfig()
	cfg.MinTrinity = 80
	gate := sovereignty.NewGate(cfg)

	got := gate.Config()
	assert.Equal(t, 80.0, got.MinTrinity)
	assert.Equal(t, 10.0, got.MaxRisk)
	assert.Equal(t, 0.30, got.MaxGap)
	assert.Equal(t, 70.0, got.BlockRisk)

	assert.True(t, gate.CheckSovereignty(85, 5, 0.1).AllPass)
}

func TestNewGate_KeepsZeroThresholds(t *testing.T) {
	cfg := sovereignty.DefaultConfig()
	cfg.MaxRisk = 0
	gate := sovereignty.NewGate(cfg)
	assert.Equal(t, 0.0, gate.Config().MaxRisk)

	res := gate.CheckSovereignty(95, 5, 0.1)
	assert.False(t, res.AllPass)
	assert.Equal(t, []string{"risk"}, res.Conditions.Failed())
	assert.True(t, gate.CheckSovereignty(95, 0, 0.1).AllPass)

	cfg = sovereignty.DefaultConfig()
	cfg.MaxGap = 0
	assert.False(t, sovereignty.NewGate(cfg).CheckSovereignty(95, 5, 0).AllPass)
}

func TestDecide_Rules(t *testing.T) {
	gate := sovereignty.NewGate(sovereignty.DefaultConfig())

	tests := []struct {
		name     string
		in       sovereignty.Input
		decision domain.Decision
		rule     string
		verdict  domain.VerdictDecision
	}{
		{"autonomous", sovereignty.Input{Trinity: 96, Risk: 2, Gap: 0.1}, domain.DecisionAutoRun, sovereignty.RuleAutoRun, domain.VerdictAutoRun},
		{"dry run", sovereignty.Input{Trinity: 96, Risk: 2, Gap: 0.1, DryRun: true}, domain.DecisionAskCommander, sovereignty.RuleDryRun, domain.VerdictAsk},
		{"failed condition", sovereignty.Input{Trinity: 70, Risk: 2, Gap: 0.1}, domain.DecisionAskCommander, sovereignty.RuleAskCommander, domain.VerdictAsk},
		{"residual doubt", sovereignty.Input{Trinity: 96, Risk: 2, Gap: 0.1, ResidualDoubt: true}, domain.DecisionAskCommander, sovereignty.RuleResidualDoubt, domain.VerdictAsk},
		{"block beats dry run", sovereignty.Input{Trinity: 40, Risk: 75, Gap: 0.6, DryRun: true}, domain.DecisionBlock, sovereignty.RuleBlockHighRisk, domain.VerdictAsk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.TraceID = "trace-x"
			ruling := gate.Decide(tt.in)
			assert.Equal(t, tt.decision, ruling.Decision)
			assert.Equal(t, tt.rule, ruling.RuleID)
			assert.Equal(t, tt.verdict, ruling.Event.Decision)
			assert.Equal(t, tt.rule, ruling.Event.RuleID)
			assert.Equal(t, "trace-x", ruling.Event.TraceID)
			assert.Equal(t, tt.in.DryRun, ruling.Event.Flags.DryRun)
			assert.Equal(t, string(tt.decision), ruling.Event.Extra["gate_decision"])
		})
	}
}
