package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/afo-kingdom/chancellor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Server, *chancellor.Engine) {
	t.Helper()
	eng, err := chancellor.New()
	require.NoError(t, err)
	return NewServer(eng, nil), eng
}

func TestHandleRun(t *testing.T) {
	s, _ := newServer(t)

	resp, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text":     "restart billing-worker",
		"trace_id": "mcp-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "mcp-1", resp.TraceID)
	assert.Equal(t, "REPORT", resp.Step)
	assert.Equal(t, "AUTO_RUN", resp.Decision)
	assert.Equal(t, "R1_AUTO_RUN", resp.RuleID)
	assert.Contains(t, resp.Report, "# Chancellor Report")
}

func TestHandleRun_DryRunAndTags(t *testing.T) {
	s, _ := newServer(t)

	resp, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"text":    "restart billing-worker",
		"dry_run": true,
		"tags":    "ops, nightly",
	})
	require.NoError(t, err)
	assert.Equal(t, "ASK_COMMANDER", resp.Decision)
	assert.Equal(t, "R0_DRY_RUN", resp.RuleID)
}

func TestHandleRun_RequiresText(t *testing.T) {
	s, _ := newServer(t)
	_, err := s.handleRun(context.Background(), mcp.CallToolRequest{}, map[string]any{"text": "  "})
	assert.Error(t, err)
}

func TestHandleCheck(t *testing.T) {
	s, _ := newServer(t)

	resp, err := s.handleCheck(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"trinity_score": 95.0,
		"risk_score":    5.0,
		"gap":           0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "AUTO_RUN", resp.Decision)
	assert.True(t, resp.Check.AllPass)

	resp, err = s.handleCheck(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"trinity_score":  95.0,
		"risk_score":     5.0,
		"residual_doubt": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "R4_RESIDUAL_DOUBT", resp.RuleID)

	_, err = s.handleCheck(context.Background(), mcp.CallToolRequest{}, map[string]any{"trinity_score": 95.0})
	assert.Error(t, err)
}

func TestPipelineResource(t *testing.T) {
	s, _ := newServer(t)
	data, err := json.Marshal(s.pipeline())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got["order"], 9)
	assert.Contains(t, got["mermaid"], "graph TD")
}
