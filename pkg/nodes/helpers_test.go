package nodes

import (
	"strings"
	"testing"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_WeakTyping(t *testing.T) {
	req, err := DecodeRequest(map[string]any{
		"text":    "deploy api",
		"dry_run": "true",
		"tags":    []any{"ops"},
		"args":    map[string]any{"replicas": 3},
		"unknown": "ignored",
	})
	require.NoError(t, err)
	assert.True(t, req.DryRun)
	assert.Equal(t, []string{"ops"}, req.Tags)
	assert.Equal(t, 3, req.Args["replicas"])
}

func TestDecodeRequest_Malformed(t *testing.T) {
	_, err := DecodeRequest(map[string]any{"args": "not-a-map"})
	assert.Error(t, err)
}

func TestClarity(t *testing.T) {
	assert.InDelta(t, 1.0, Clarity("restart the billing worker"), 1e-9)
	assert.InDelta(t, 0.8, Clarity("RESTART NOW"), 1e-9)
	assert.Less(t, Clarity(strings.Repeat("word ", 100)+"!!"), 0.6)
	assert.Zero(t, Clarity(""))
}

func TestRecordedTriggers_AfterJSONRoundTrip(t *testing.T) {
	s := domain.NewGraphState(nil)
	s.SetOutput("TRUTH", map[string]any{"triggers": []any{"VERIFICATION_SUCCESS"}})
	s.SetOutput("GOODNESS", map[string]any{"triggers": []string{"risk_detected"}})
	s.SetOutput("BEAUTY", map[string]any{"triggers": []string{"ELEGANT_SOLUTION"}})

	assert.Equal(t, []trinity.Trigger{trinity.VerificationSuccess, trinity.RiskDetected, trinity.ElegantSolution}, recordedTriggers(s))
}
