package plan

import (
	"context"

	"github.com/pkg/errors"

	"agentdex/pkg/rebalance"
	"agentdex/pkg/types"
)

// PortfolioFetcher loads a wallet's current portfolio
type PortfolioFetcher interface {
	GetPortfolio(ctx context.Context, wallet string) (types.Portfolio, error)
}

// DriftChecker decides whether a plan's wallet has drifted far enough from
// its targets to be rebalanced
type DriftChecker struct {
	client PortfolioFetcher
}

// NewDriftChecker creates a new drift checker
func NewDriftChecker(client PortfolioFetcher) *DriftChecker {
	return &DriftChecker{
		client: client,
	}
}

// DriftInfo is the result of one drift check
type DriftInfo struct {
	Portfolio     types.Portfolio
	Snapshot      *rebalance.Snapshot
	MaxDeviation  float64 // percentage points
	TotalValueUSD float64
}

// Check fetches the wallet portfolio and measures the largest deviation
// from the plan's targets
func (d *DriftChecker) Check(ctx context.Context, plan *Plan) (*DriftInfo, error) {
	portfolio, err := d.client.GetPortfolio(ctx, plan.Wallet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get portfolio")
	}

	snapshot, err := rebalance.NewSnapshot(portfolio)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read portfolio")
	}

	return &DriftInfo{
		Portfolio:     portfolio,
		Snapshot:      snapshot,
		MaxDeviation:  rebalance.MaxDeviation(snapshot, plan.Targets),
		TotalValueUSD: snapshot.TotalValueUSD.InexactFloat64(),
	}, nil
}

// ExceedsThreshold reports whether the drift reaches the plan's threshold
func (d *DriftChecker) ExceedsThreshold(plan *Plan, info *DriftInfo) bool {
	return info.TotalValueUSD > 0 && info.MaxDeviation >= plan.DriftThreshold
}

// ShouldRebalance determines if a plan should rebalance now
func (d *DriftChecker) ShouldRebalance(ctx context.Context, plan *Plan) (bool, *DriftInfo, error) {
	if !plan.IsActive() {
		return false, nil, nil
	}

	info, err := d.Check(ctx, plan)
	if err != nil {
		return false, nil, err
	}

	return d.ExceedsThreshold(plan, info), info, nil
}
