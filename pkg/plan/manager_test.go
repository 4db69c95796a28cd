package plan

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdex/pkg/types"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

var testTargets = []types.Allocation{{Token: "SOL", Percent: 60}, {Token: "USDC", Percent: 40}}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "plans.json"))
	require.NoError(t, err)
	return m
}

func TestManager_CreatePlan(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePlan("core", "sol heavy", testWallet, testTargets, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, p.Status)
	assert.Equal(t, DefaultDriftThreshold, p.DriftThreshold)
	assert.Empty(t, p.Runs)

	_, err = m.CreatePlan("core", "", testWallet, testTargets, 0, 0)
	assert.True(t, errors.Is(err, ErrPlanExists))
}

func TestManager_CreatePlanValidation(t *testing.T) {
	tests := []struct {
		name      string
		planName  string
		wallet    string
		targets   []types.Allocation
		threshold float64
		interval  time.Duration
		wantErr   string
	}{
		{name: "missing name", wallet: testWallet, targets: testTargets, wantErr: "plan name is required"},
		{name: "missing wallet", planName: "p", targets: testTargets, wantErr: "wallet is required"},
		{name: "no targets", planName: "p", wallet: testWallet, wantErr: "at least one target"},
		{name: "percent out of range", planName: "p", wallet: testWallet, targets: []types.Allocation{{Token: "SOL", Percent: 150}}, wantErr: "between 0 and 100"},
		{name: "over 100 total", planName: "p", wallet: testWallet, targets: []types.Allocation{{Token: "SOL", Percent: 70}, {Token: "USDC", Percent: 40}}, wantErr: "more than 100%"},
		{name: "duplicate", planName: "p", wallet: testWallet, targets: []types.Allocation{{Token: "SOL", Percent: 50}, {Token: "SOL", Percent: 50}}, wantErr: "duplicate target"},
		{name: "threshold in dead zone", planName: "p", wallet: testWallet, targets: testTargets, threshold: 0.5, wantErr: "drift threshold"},
		{name: "interval too short", planName: "p", wallet: testWallet, targets: testTargets, interval: time.Second, wantErr: "interval must be at least"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			_, err := m.CreatePlan(tt.planName, "", tt.wallet, tt.targets, tt.threshold, tt.interval)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreatePlan("core", "", testWallet, testTargets, 3, time.Minute)
	require.NoError(t, err)

	assert.Error(t, m.StopPlan("core"), "paused plan cannot be stopped")
	require.NoError(t, m.StartPlan("core"))
	assert.Error(t, m.StartPlan("core"), "active plan cannot be started twice")
	assert.Len(t, m.GetActivePlans(), 1)

	err = m.DeletePlan("core")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop it first")

	require.NoError(t, m.StopPlan("core"))
	assert.Len(t, m.ListPlansByStatus(StatusPaused), 1)
	require.NoError(t, m.DeletePlan("core"))
	assert.Empty(t, m.ListPlans())

	assert.True(t, errors.Is(m.StartPlan("core"), ErrPlanNotFound))
}

func TestManager_UpdatePlanValidates(t *testing.T) {
	m := newTestManager(t)
	p, err := m.CreatePlan("core", "", testWallet, testTargets, 0, 0)
	require.NoError(t, err)

	p.DriftThreshold = 10
	require.NoError(t, m.UpdatePlan(p))

	p.Targets = nil
	assert.Error(t, m.UpdatePlan(p))

	stored, err := m.GetPlan("core")
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.DriftThreshold)
	assert.Len(t, stored.Targets, 2)
}

func TestManager_RejectedUpdateIsNotSaved(t *testing.T) {
	m := newTestManager(t)
	p, err := m.CreatePlan("core", "", testWallet, testTargets, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.UpdatePlan(p))

	p.Targets = nil
	p.DriftThreshold = 0
	require.Error(t, m.UpdatePlan(p))

	// Any later write flushes the whole store to disk
	_, err = m.CreatePlan("other", "", testWallet, testTargets, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Reload())

	stored, err := m.GetPlan("core")
	require.NoError(t, err)
	assert.Len(t, stored.Targets, 2)
	assert.Equal(t, DefaultDriftThreshold, stored.DriftThreshold)
	assert.NoError(t, stored.Validate())
}

func TestManager_AddRun(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreatePlan("core", "", testWallet, testTargets, 0, 0)
	require.NoError(t, err)

	id, err := m.AddRun("core", Run{
		MaxDeviation: 12.5,
		Legs:         3,
		Results: []*types.SwapResult{
			{Success: true, Signature: "sig1"},
			{Success: false, OutputAmount: "0", Error: "boom"},
		},
		Error: "quote SOL: upstream 502",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	history, err := m.GetRunHistory("core")
	require.NoError(t, err)
	require.Len(t, history, 1)
	run := history[0]
	assert.Equal(t, id, run.ID)
	assert.Equal(t, 3, run.Legs)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.Timestamp.IsZero())
	assert.Equal(t, "error", run.Status())

	_, err = m.AddRun("missing", Run{})
	assert.True(t, errors.Is(err, ErrPlanNotFound))
}

func TestManager_AddRunTrimsHistory(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreatePlan("core", "", testWallet, testTargets, 0, 0)
	require.NoError(t, err)

	var lastID string
	for i := 0; i < MaxRunHistory+5; i++ {
		lastID, err = m.AddRun("core", Run{})
		require.NoError(t, err)
	}

	p, err := m.GetPlan("core")
	require.NoError(t, err)
	assert.Len(t, p.Runs, MaxRunHistory)
	assert.Equal(t, MaxRunHistory+5, p.RunCount)
	assert.Equal(t, lastID, p.LastRun().ID)
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, "no-op", Run{}.Status())
	assert.Equal(t, "ok", Run{Legs: 2, Succeeded: 2}.Status())
	assert.Equal(t, "failed", Run{Legs: 1, Failed: 1}.Status())
	assert.Equal(t, "partial", Run{Legs: 2, Succeeded: 1, Failed: 1}.Status())
	assert.Equal(t, "error", Run{Error: "x"}.Status())
}

func TestToSummary(t *testing.T) {
	p := newTestPlan("core")
	summary := p.ToSummary()
	assert.Equal(t, "SOL=60,USDC=40", summary.Targets)
	assert.Nil(t, summary.LastRun)

	p.Runs = []Run{{Timestamp: time.Unix(100, 0)}}
	assert.Equal(t, time.Unix(100, 0), *p.ToSummary().LastRun)
}
