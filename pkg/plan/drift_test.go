package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"agentdex/pkg/mocks"
	"agentdex/pkg/types"
)

func TestDriftChecker_Check(t *testing.T) {
	client := mocks.NewMockSwapClientForTest(t)
	checker := NewDriftChecker(client)
	p := &Plan{Wallet: testWallet, Targets: testTargets, DriftThreshold: 5, Status: StatusActive}

	client.EXPECT().GetPortfolio(gomock.Any(), testWallet).Return(driftedPortfolio(), nil)

	info, err := checker.Check(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, info.TotalValueUSD)
	assert.InDelta(t, 40.0, info.MaxDeviation, 1e-9)
	assert.Len(t, info.Snapshot.Holdings, 2)
	assert.True(t, checker.ExceedsThreshold(p, info))
}

func TestDriftChecker_CheckError(t *testing.T) {
	client := mocks.NewMockSwapClientForTest(t)
	checker := NewDriftChecker(client)

	client.EXPECT().GetPortfolio(gomock.Any(), testWallet).Return(nil, errors.New("boom"))

	_, err := checker.Check(context.Background(), &Plan{Wallet: testWallet, Targets: testTargets})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get portfolio")
	assert.Contains(t, err.Error(), "boom")
}

func TestDriftChecker_ExceedsThreshold(t *testing.T) {
	checker := NewDriftChecker(nil)
	p := &Plan{DriftThreshold: 5}

	tests := []struct {
		name string
		info *DriftInfo
		want bool
	}{
		{"at threshold", &DriftInfo{TotalValueUSD: 100, MaxDeviation: 5}, true},
		{"above threshold", &DriftInfo{TotalValueUSD: 100, MaxDeviation: 12.5}, true},
		{"below threshold", &DriftInfo{TotalValueUSD: 100, MaxDeviation: 4.99}, false},
		{"empty wallet", &DriftInfo{TotalValueUSD: 0, MaxDeviation: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.ExceedsThreshold(p, tt.info))
		})
	}
}

func TestDriftChecker_ShouldRebalanceSkipsPausedPlans(t *testing.T) {
	client := mocks.NewMockSwapClientForTest(t)
	checker := NewDriftChecker(client)

	should, info, err := checker.ShouldRebalance(context.Background(), &Plan{Wallet: testWallet, Status: StatusPaused})
	require.NoError(t, err)
	assert.False(t, should)
	assert.Nil(t, info)
}

func TestDriftChecker_ZeroTotal(t *testing.T) {
	client := mocks.NewMockSwapClientForTest(t)
	checker := NewDriftChecker(client)
	p := &Plan{Wallet: testWallet, Targets: testTargets, DriftThreshold: 1, Status: StatusActive}

	client.EXPECT().GetPortfolio(gomock.Any(), testWallet).
		Return(types.Portfolio{"totalValueUsd": 0, "tokens": []any{}}, nil)

	should, info, err := checker.ShouldRebalance(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, should)
	assert.Zero(t, info.MaxDeviation)
}
