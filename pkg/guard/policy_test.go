package guard

import (
	"context"
	"testing"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyEvaluator_Approved(t *testing.T) {
	e := NewPolicyEvaluator(DefaultPolicies()...)

	d, err := e.EvaluateAction(context.Background(), domain.ActionContext{
		Action: "restart", Target: "billing-worker", SecurityStatus: "clear",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.GovernanceApproved, d.Decision)
	assert.Equal(t, "low", d.RiskLevel)
	assert.Len(t, d.Checks, 4)
	for _, c := range d.Checks {
		assert.True(t, c.Passed, c.Policy)
	}
}

func TestPolicyEvaluator_KeepsMostSevere(t *testing.T) {
	e := NewPolicyEvaluator(DefaultPolicies()...)

	d, err := e.EvaluateAction(context.Background(), domain.ActionContext{
		Action: "delete", Target: "prod", SecurityStatus: "threat_detected",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.GovernanceDenied, d.Decision)
	assert.Equal(t, "high", d.RiskLevel)
	assert.Contains(t, d.Reason, "security_clearance")
	assert.Contains(t, d.Reason, "protected_target")

	failed := 0
	for _, c := range d.Checks {
		if !c.Passed {
			failed++
		}
	}
	assert.Equal(t, 3, failed)
}

func TestPolicyEvaluator_DryRunSkipsDestructive(t *testing.T) {
	e := NewPolicyEvaluator(DestructiveActionPolicy())

	d, err := e.EvaluateAction(context.Background(), domain.ActionContext{Action: "purge", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, domain.GovernanceApproved, d.Decision)

	d, err = e.EvaluateAction(context.Background(), domain.ActionContext{Action: "purge"})
	require.NoError(t, err)
	assert.Equal(t, domain.GovernanceEscalated, d.Decision)
	assert.Equal(t, "medium", d.RiskLevel)
}

func TestPolicyEvaluator_DeniedTag(t *testing.T) {
	e := NewPolicyEvaluator(DeniedTagPolicy("forbidden"))
	d, err := e.EvaluateAction(context.Background(), domain.ActionContext{Action: "read", Tags: []string{"ops", "forbidden"}})
	require.NoError(t, err)
	assert.Equal(t, domain.GovernanceDenied, d.Decision)
}

func TestPolicyEvaluator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPolicyEvaluator(SecurityPolicy()).EvaluateAction(ctx, domain.ActionContext{})
	assert.ErrorIs(t, err, context.Canceled)
}
