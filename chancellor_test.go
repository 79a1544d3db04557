package chancellor_test

import (
	"context"
	goruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/config"
	"github.com/afo-kingdom/chancellor/pkg/adapters/process"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/persistence/middleware"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEngine_RunDefaults(t *testing.T) {
	eng, err := chancellor.New()
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	state, err := eng.Run(ctx, map[string]any{"text": "restart billing-worker"})
	require.NoError(t, err)

	assert.NotEmpty(t, state.TraceID)
	assert.Equal(t, domain.StepReport, state.Step)
	assert.Empty(t, state.Errors)

	verdicts, err := eng.Verdicts(ctx, state.TraceID, 0)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, sovereignty.RuleAutoRun, verdicts[0].RuleID)

	replayed, completed, err := eng.Replay(ctx, state.TraceID)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.Equal(t, state.Outputs["MERGE"], replayed.Outputs["MERGE"])

	latest, err := eng.Checkpoints().Latest(ctx, state.TraceID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepReport, latest.Step)
}

func TestEngine_InvalidWeights(t *testing.T) {
	_, err := chancellor.New(chancellor.WithWeights(map[trinity.Pillar]float64{trinity.Truth: 1.5}))
	assert.Error(t, err)
}

func TestEngine_SubscribeVerdicts(t *testing.T) {
	eng, err := chancellor.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := eng.SubscribeVerdicts(ctx)
	require.NoError(t, err)

	_, err = eng.Run(ctx, map[string]any{"text": "restart api", "trace_id": "sub-1"})
	require.NoError(t, err)

	select {
	case v := <-ch:
		assert.Equal(t, "sub-1", v.TraceID)
	case <-time.After(time.Second):
		t.Fatal("no verdict received")
	}
}

func TestEngine_SameTraceRunsAreSerialized(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	hooks := domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, e *domain.RunEvent) {
			if e.Step != domain.StepCmd {
				return
			}
			mu.Lock()
			inFlight++
			peak = max(peak, inFlight)
			mu.Unlock()
		},
		OnStepExit: func(_ context.Context, e *domain.RunEvent) {
			if e.Step != domain.StepReport {
				return
			}
			mu.Lock()
			inFlight--
			mu.Unlock()
		},
	}
	eng, err := chancellor.New(chancellor.WithLifecycleHooks(hooks))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Run(context.Background(), map[string]any{"text": "restart api", "trace_id": "shared"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	assert.Equal(t, 0, eng.Sessions().Active())
}

func TestFromConfig_File(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.CheckpointKey = testKey
	cfg.MaskPII = true

	eng, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	state, err := eng.Run(ctx, map[string]any{"text": "restart api", "api_key": "s3cr3t"})
	require.NoError(t, err)

	latest, err := eng.Checkpoints().Latest(ctx, state.TraceID)
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, latest.Input["api_key"])

	events, err := eng.Events(ctx, state.TraceID)
	require.NoError(t, err)
	assert.Len(t, events, 2*len(domain.Order))
}

func TestFromConfig_ZeroMaxRiskAsksCommander(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.Gate.MaxRisk = 0

	eng, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, 0.0, eng.Gate().MaxRisk)
	assert.False(t, eng.CheckSovereignty(95, 5, 0.1).AllPass)
}

func TestFromConfig_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreSQLite
	cfg.DataDir = t.TempDir()

	eng, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	state, err := eng.Run(context.Background(), map[string]any{"text": "drop table users"})
	require.NoError(t, err)
	assert.Equal(t, domain.StepExecute, state.Step)

	verdicts, err := eng.Verdicts(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, sovereignty.RuleBlockHighRisk, verdicts[0].RuleID)
}

func TestFromConfig_ActionsRunProcesses(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.Actions = map[string]process.Action{
		"restart": {Command: "sh", Args: []string{"-c", "echo restarted $CHANCELLOR_TARGET"}},
	}

	eng, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	state, err := eng.Run(context.Background(), map[string]any{"text": "restart api"})
	require.NoError(t, err)
	exec, ok := state.Output(string(domain.StepExecute))
	require.True(t, ok)
	assert.Equal(t, true, exec["success"])
	assert.Equal(t, map[string]any{"stdout": "restarted api"}, exec["output"])

	cfg.Actions = map[string]process.Action{"status": {Command: "true"}}
	strict, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer strict.Close()

	state, err = strict.Run(context.Background(), map[string]any{"text": "restart api"})
	require.NoError(t, err)
	exec, _ = state.Output(string(domain.StepExecute))
	assert.Equal(t, false, exec["success"])
	assert.Contains(t, state.LastError(), "action not registered")
}

func TestFromConfig_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()

	eng, err := chancellor.FromConfig(cfg, nil)
	require.NoError(t, err)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := eng.SubscribeVerdicts(ctx)
	require.NoError(t, err)

	_, err = eng.Run(ctx, map[string]any{"text": "restart api", "trace_id": "redis-1"})
	require.NoError(t, err)

	select {
	case v := <-ch:
		assert.Equal(t, "redis-1", v.TraceID)
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict received over pub/sub")
	}

	ids, err := eng.Checkpoints().List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "redis-1")
}

func TestFromConfig_BadKey(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	cfg.CheckpointKey = "short"
	_, err := chancellor.FromConfig(cfg, nil)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(chancellor.Version))
}
