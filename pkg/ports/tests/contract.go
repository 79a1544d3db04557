// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueID(prefix string) string {
	return prefix + "-" + time.Now().Format("20060102150405.000000000")
}

// RunCheckpointStoreContract verifies that a CheckpointStore adheres to the port contract.
func RunCheckpointStoreContract(t *testing.T, store ports.CheckpointStore) {
	ctx := context.Background()
	traceID := uniqueID("contract-trace")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewGraphState(map[string]any{"text": "hello", "trace_id": traceID})
		state.Step = domain.StepParse
		state.SetOutput("CMD", map[string]any{"status": "ok"})

		require.NoError(t, store.Save(ctx, traceID, domain.StepParse, state))

		loaded, err := store.Load(ctx, traceID, domain.StepParse)
		require.NoError(t, err)
		assert.Equal(t, traceID, loaded.TraceID)
		assert.Equal(t, domain.StepParse, loaded.Step)
		assert.Equal(t, "hello", loaded.Input["text"])
		out, ok := loaded.Output("CMD")
		require.True(t, ok)
		assert.Equal(t, "ok", out["status"])
	})

	t.Run("Overwrite Same Step", func(t *testing.T) {
		state := domain.NewGraphState(map[string]any{"trace_id": traceID})
		state.Step = domain.StepParse
		state.AddError("second write")
		require.NoError(t, store.Save(ctx, traceID, domain.StepParse, state))

		loaded, err := store.Load(ctx, traceID, domain.StepParse)
		require.NoError(t, err)
		assert.Equal(t, []string{"second write"}, loaded.Errors)
	})

	t.Run("Latest Picks Furthest Step", func(t *testing.T) {
		state := domain.NewGraphState(map[string]any{"trace_id": traceID})
		state.Step = domain.StepMerge
		require.NoError(t, store.Save(ctx, traceID, domain.StepMerge, state))
		state.Step = domain.StepTruth
		require.NoError(t, store.Save(ctx, traceID, domain.StepTruth, state))

		latest, err := store.Latest(ctx, traceID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepMerge, latest.Step)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+traceID, domain.StepCmd)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

		_, err = store.Latest(ctx, "missing-"+traceID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

		_, err = store.Load(ctx, traceID, domain.StepReport)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := traceID + "-other"
		require.NoError(t, store.Save(ctx, other, domain.StepCmd, domain.NewGraphState(map[string]any{"trace_id": other})))
		defer func() { _ = store.Delete(ctx, other) }()

		traces, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, traces, traceID)
		assert.Contains(t, traces, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, traceID))

		_, err := store.Latest(ctx, traceID)
		assert.ErrorIs(t, err, domain.ErrCheckpointNotFound)

		traces, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, traces, traceID)
	})
}

// EventStore is the combination exercised by RunEventLogContract.
type EventStore interface {
	ports.EventLog
	ports.EventReader
}

// RunEventLogContract verifies append-order reads and trace isolation.
func RunEventLogContract(t *testing.T, log EventStore) {
	ctx := context.Background()
	traceID := uniqueID("contract-events")

	t.Run("Append and Read Back In Order", func(t *testing.T) {
		state := domain.NewGraphState(map[string]any{"trace_id": traceID})
		for _, ev := range []domain.RunEvent{
			{TraceID: traceID, Step: domain.StepCmd, Type: domain.EventEnter, Timestamp: time.Now().UTC()},
			{TraceID: traceID, Step: domain.StepCmd, Type: domain.EventExit, Timestamp: time.Now().UTC(), State: state},
			{TraceID: traceID + "-noise", Step: domain.StepCmd, Type: domain.EventEnter, Timestamp: time.Now().UTC()},
			{TraceID: traceID, Step: domain.StepParse, Type: domain.EventError, Message: "PARSE failed: ValueError: bad", Timestamp: time.Now().UTC()},
		} {
			require.NoError(t, log.Append(ctx, ev))
		}

		events, err := log.Events(ctx, traceID)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, domain.EventEnter, events[0].Type)
		assert.Equal(t, domain.EventExit, events[1].Type)
		require.NotNil(t, events[1].State)
		assert.Equal(t, traceID, events[1].State.TraceID)
		assert.Equal(t, domain.StepParse, events[2].Step)
		assert.Equal(t, "PARSE failed: ValueError: bad", events[2].Message)
	})

	t.Run("Unknown Trace", func(t *testing.T) {
		_, err := log.Events(ctx, "missing-"+traceID)
		assert.ErrorIs(t, err, domain.ErrTraceNotFound)
	})
}

// RunVerdictLogContract verifies publishing and querying verdicts.
func RunVerdictLogContract(t *testing.T, log ports.VerdictLog) {
	ctx := context.Background()
	traceA := uniqueID("contract-verdict-a")
	traceB := traceA + "-b"

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, v := range []domain.VerdictEvent{
		{TraceID: traceA, GraphNodeID: "MERGE", Step: 6, Decision: domain.VerdictAutoRun, RuleID: "R1_AUTO_RUN", TrinityScore: 96.5, RiskScore: 2, Timestamp: base},
		{TraceID: traceB, GraphNodeID: "MERGE", Step: 6, Decision: domain.VerdictAsk, RuleID: "R2_ASK_COMMANDER", TrinityScore: 71.25, RiskScore: 40, Timestamp: base.Add(time.Second), Extra: map[string]any{"gap": 0.4}},
		{TraceID: traceA, GraphNodeID: "MERGE", Step: 6, Decision: domain.VerdictAsk, RuleID: "R0_DRY_RUN", TrinityScore: 96.5, RiskScore: 2, Flags: domain.VerdictFlags{DryRun: true}, Timestamp: base.Add(2 * time.Second)},
	} {
		require.NoError(t, log.Publish(ctx, v), "publish %d", i)
	}

	t.Run("Filter By Trace", func(t *testing.T) {
		got, err := log.Verdicts(ctx, traceA, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "R1_AUTO_RUN", got[0].RuleID)
		assert.Equal(t, "R0_DRY_RUN", got[1].RuleID)
		assert.True(t, got[1].Flags.DryRun)
	})

	t.Run("Limit Keeps Newest", func(t *testing.T) {
		got, err := log.Verdicts(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, traceB, got[0].TraceID)
		assert.Equal(t, 0.4, got[0].Extra["gap"])
		assert.Equal(t, "R0_DRY_RUN", got[1].RuleID)
	})
}
