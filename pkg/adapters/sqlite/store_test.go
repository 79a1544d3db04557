package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/domain"
	contract "github.com/afo-kingdom/chancellor/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chancellor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	contract.RunCheckpointStoreContract(t, tempDB(t))
}

func TestSQLiteEventLog_Contract(t *testing.T) {
	contract.RunEventLogContract(t, tempDB(t))
}

func TestSQLiteVerdictLog_Contract(t *testing.T) {
	contract.RunVerdictLogContract(t, tempDB(t))
}

func TestSQLiteStats(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	for _, v := range []domain.VerdictEvent{
		{TraceID: "a", RuleID: "R1_AUTO_RUN", Decision: domain.VerdictAutoRun, TrinityScore: 100, RiskScore: 0, Timestamp: time.Now()},
		{TraceID: "b", RuleID: "R1_AUTO_RUN", Decision: domain.VerdictAutoRun, TrinityScore: 90, RiskScore: 10, Timestamp: time.Now()},
		{TraceID: "c", RuleID: "R3_BLOCK_HIGH_RISK", Decision: domain.VerdictAsk, TrinityScore: 80, RiskScore: 90, Timestamp: time.Now()},
	} {
		require.NoError(t, s.Publish(ctx, v))
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.ByRule["R1_AUTO_RUN"])
	assert.Equal(t, 1, st.ByDecision["ASK"])
	assert.InDelta(t, 90.0, st.MeanTrinity, 1e-9)
	assert.InDelta(t, 100.0/3, st.MeanRisk, 1e-9)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "t", domain.StepVerify, domain.NewGraphState(map[string]any{"trace_id": "t"})))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "t", got.TraceID)
}
