package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/config"
	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *chancellor.Engine {
	t.Helper()
	eng, err := chancellor.New(chancellor.WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestBuildInput(t *testing.T) {
	input, err := BuildInput(RunOptions{
		Input:   `{"source":"cli","text":"ignored"}`,
		Text:    "restart api",
		TraceID: "t-1",
		Tags:    []string{"ops"},
		DryRun:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "restart api", input["text"])
	assert.Equal(t, "cli", input["source"])
	assert.Equal(t, "t-1", input["trace_id"])
	assert.Equal(t, []string{"ops"}, input["tags"])
	assert.Equal(t, true, input["dry_run"])

	_, err = BuildInput(RunOptions{})
	assert.Error(t, err)

	_, err = BuildInput(RunOptions{Input: "{not json"})
	assert.ErrorContains(t, err, "invalid input json")
}

func TestRunOnce_Report(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer

	state, err := RunOnce(context.Background(), eng, RunOptions{Text: "restart api", TraceID: "cli-run"}, &out)
	require.NoError(t, err)
	assert.Equal(t, domain.StepReport, state.Step)
	assert.Contains(t, out.String(), "[AUTO_RUN] R1_AUTO_RUN")
	assert.Contains(t, out.String(), "# Chancellor Report")
	assert.NotContains(t, out.String(), "Run stopped")
}

func TestRunOnce_HaltedRunIsReported(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer

	state, err := RunOnce(context.Background(), eng, RunOptions{Text: "drop table users"}, &out)
	require.NoError(t, err)
	assert.Equal(t, domain.StepExecute, state.Step)
	assert.Contains(t, out.String(), "[BLOCK] R3_BLOCK_HIGH_RISK")
	assert.Contains(t, out.String(), ">>> Run stopped at EXECUTE")
}

func TestRunOnce_JSON(t *testing.T) {
	eng := newEngine(t)
	var out bytes.Buffer

	_, err := RunOnce(context.Background(), eng, RunOptions{Text: "restart api", DryRun: true, JSON: true}, &out)
	require.NoError(t, err)

	var payload struct {
		Summary map[string]any     `json:"summary"`
		State   *domain.GraphState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, "ASK_COMMANDER", payload.Summary["decision"])
	assert.Equal(t, "R0_DRY_RUN", payload.Summary["rule_id"])
	assert.NotEmpty(t, payload.State.TraceID)
}

func TestCheck(t *testing.T) {
	eng := newEngine(t)

	tests := []struct {
		name string
		opts CheckOptions
		rule string
	}{
		{"autonomous", CheckOptions{Trinity: 95, Risk: 5, Gap: 0.1}, "R1_AUTO_RUN"},
		{"low trinity", CheckOptions{Trinity: 80, Risk: 5, Gap: 0.1}, "R2_ASK_COMMANDER"},
		{"high risk", CheckOptions{Trinity: 95, Risk: 80, Gap: 0.1}, "R3_BLOCK_HIGH_RISK"},
		{"dry run", CheckOptions{Trinity: 95, Risk: 5, DryRun: true}, "R0_DRY_RUN"},
		{"doubt", CheckOptions{Trinity: 95, Risk: 5, ResidualDoubt: true}, "R4_RESIDUAL_DOUBT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ruling, err := Check(eng, tt.opts, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.rule, ruling.RuleID)
			assert.Contains(t, out.String(), tt.rule)
		})
	}

	_, err := Check(eng, CheckOptions{Trinity: 120}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = Check(eng, CheckOptions{Trinity: 95, Risk: -1}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPrintWeights(t *testing.T) {
	var out bytes.Buffer
	PrintWeights(newEngine(t), &out)
	assert.Contains(t, out.String(), "truth      0.35")
	assert.Contains(t, out.String(), "block at risk >= 70.0")
}

func TestInspection(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	_, err := eng.Run(ctx, map[string]any{"text": "restart api", "trace_id": "inspect-1"})
	require.NoError(t, err)

	t.Run("checkpoints", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ListCheckpoints(ctx, eng, &out))
		assert.Contains(t, out.String(), "inspect-1")

		out.Reset()
		require.NoError(t, InspectCheckpoint(ctx, eng, "inspect-1", "merge", &out))
		var state domain.GraphState
		require.NoError(t, json.Unmarshal(out.Bytes(), &state))
		assert.Equal(t, domain.StepMerge, state.Step)

		out.Reset()
		require.NoError(t, InspectCheckpoint(ctx, eng, "inspect-1", "", &out))
		require.NoError(t, json.Unmarshal(out.Bytes(), &state))
		assert.Equal(t, domain.StepReport, state.Step)

		assert.Error(t, InspectCheckpoint(ctx, eng, "inspect-1", "BOGUS", &out))
		assert.Error(t, InspectCheckpoint(ctx, eng, "missing", "", &out))
	})

	t.Run("replay", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ReplayTrace(ctx, eng, "inspect-1", &out))
		assert.Contains(t, out.String(), "STEP")
		assert.Contains(t, out.String(), "REPORT")
		assert.Contains(t, out.String(), ">>> Completed: true")
	})

	t.Run("verdicts", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, ListVerdicts(ctx, eng, "inspect-1", 10, &out))
		assert.Contains(t, out.String(), "inspect-1 AUTO_RUN R1_AUTO_RUN")
	})

	t.Run("graph overlay", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, PrintGraph(ctx, eng, "inspect-1", &out))
		assert.Contains(t, out.String(), "graph TD")
		assert.Contains(t, out.String(), "class")

		out.Reset()
		require.NoError(t, PrintGraph(ctx, eng, "", &out))
		assert.NotContains(t, out.String(), "classDef visited")
	})

	t.Run("delete", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, DeleteCheckpoints(ctx, eng, "inspect-1", &out))
		assert.Contains(t, out.String(), "Deleted checkpoints for inspect-1")
		_, err := eng.Checkpoints().Latest(ctx, "inspect-1")
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})
}

type tailInspector struct {
	Inspector
	ch chan domain.VerdictEvent
}

func (f tailInspector) SubscribeVerdicts(ctx context.Context) (<-chan domain.VerdictEvent, error) {
	return f.ch, nil
}

func TestTailVerdicts_FiltersByTrace(t *testing.T) {
	ch := make(chan domain.VerdictEvent, 2)
	ch <- domain.VerdictEvent{TraceID: "other", Decision: "BLOCK", RuleID: "R3_BLOCK_HIGH_RISK"}
	ch <- domain.VerdictEvent{TraceID: "mine", Decision: "AUTO_RUN", RuleID: "R1_AUTO_RUN"}
	close(ch)

	var out bytes.Buffer
	require.NoError(t, TailVerdicts(context.Background(), tailInspector{ch: ch}, "mine", &out))
	assert.Contains(t, out.String(), "mine AUTO_RUN")
	assert.NotContains(t, out.String(), "other")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chancellor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nlog_level: warn\n"), 0644))

	cfg, err := LoadConfig(Options{ConfigPath: path, DataDir: "/tmp/x", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, "/tmp/x", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = LoadConfig(Options{ConfigPath: path, Store: "etcd"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewEnv_Memory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chancellor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\n"), 0644))

	env, err := NewEnv(Options{ConfigPath: path})
	require.NoError(t, err)
	defer env.Close()
	assert.Equal(t, slog.LevelInfo, env.Level.Level())
	assert.Equal(t, config.StoreMemory, env.Config.Store)
}

func TestApplyReloads(t *testing.T) {
	level := new(slog.LevelVar)
	updates := make(chan config.Config, 2)
	updates <- config.Config{LogLevel: "verbose"}
	updates <- config.Config{LogLevel: "debug"}
	close(updates)

	done := make(chan struct{})
	go func() {
		applyReloads(updates, level, logging.NewNop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("applyReloads did not return")
	}
	assert.Equal(t, slog.LevelDebug, level.Level())
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "localhost:8081", hostPort(":8081"))
	assert.Equal(t, "0.0.0.0:9000", hostPort("0.0.0.0:9000"))
	assert.Equal(t, "weird", hostPort("weird"))
}
