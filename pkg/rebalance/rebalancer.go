package rebalance

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agentdex/pkg/logger"
	"agentdex/pkg/tokens"
	"agentdex/pkg/types"
)

//go:generate mockgen -destination=../mocks/mock_swap_client.go -package=mocks agentdex/pkg/rebalance SwapClient

// SwapClient is the part of the AgentDEX client a rebalance pass needs
type SwapClient interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*types.Quote, error)
	ExecuteSwap(ctx context.Context, req types.SwapRequest) *types.SwapResult
	GetPortfolio(ctx context.Context, wallet string) (types.Portfolio, error)
}

const (
	DefaultQuoteToken    = "USDC"
	DefaultQuoteDecimals = 6
)

// deviations below one percentage point are left alone
var deadZone = decimal.NewFromInt(1)

// Side is the direction of a leg relative to the target token
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Leg is one swap the rebalancer intends to make
type Leg struct {
	Token       string  `json:"token"`
	Side        Side    `json:"side"`
	TargetPct   float64 `json:"target_pct"`
	CurrentPct  float64 `json:"current_pct"`
	Deviation   float64 `json:"deviation"`
	InputToken  string  `json:"input_token"`
	OutputToken string  `json:"output_token"`
	Amount      uint64  `json:"amount"`
}

func (l Leg) String() string {
	return fmt.Sprintf("%s %s: %s -> %s amount %d (%.2f%% -> %.2f%%)",
		l.Side, l.Token, l.InputToken, l.OutputToken, l.Amount, l.CurrentPct, l.TargetPct)
}

// Option configures a Rebalancer
type Option func(*Rebalancer)

// WithQuoteToken sets the token that buys are paid with and sells settle
// into, and its number of decimals
func WithQuoteToken(symbol string, decimals int32) Option {
	return func(r *Rebalancer) {
		if symbol != "" {
			r.quoteToken = symbol
			r.quoteDecimals = decimals
		}
	}
}

// WithSlippageBps overrides the client's default slippage for every leg
func WithSlippageBps(bps int) Option {
	return func(r *Rebalancer) {
		r.slippageBps = bps
	}
}

// Rebalancer moves a wallet towards target allocations in one linear pass
type Rebalancer struct {
	client        SwapClient
	quoteToken    string
	quoteDecimals int32
	slippageBps   int
}

// New creates a Rebalancer backed by client
func New(client SwapClient, opts ...Option) *Rebalancer {
	r := &Rebalancer{
		client:        client,
		quoteToken:    DefaultQuoteToken,
		quoteDecimals: DefaultQuoteDecimals,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan computes the legs for targets without touching the network. Targets
// are handled in the order given. A target on the quote token itself never
// produces a leg.
func (r *Rebalancer) Plan(snapshot *Snapshot, targets []types.Allocation) []Leg {
	if snapshot == nil || snapshot.TotalValueUSD.IsZero() {
		return nil
	}

	var legs []Leg
	for _, target := range targets {
		// the quote token moves as the other legs buy and sell
		if r.isQuoteToken(target.Token) {
			logger.Debug("Skipping quote token target", zap.String("token", target.Token))
			continue
		}

		targetPct := decimal.NewFromFloat(target.Percent)
		currentPct := snapshot.CurrentPercent(target.Token)
		deviation := targetPct.Sub(currentPct)

		if deviation.Abs().LessThan(deadZone) {
			logger.Debug("Allocation within dead zone",
				zap.String("token", target.Token),
				zap.String("deviation", deviation.StringFixed(4)))
			continue
		}

		leg := Leg{
			Token:      target.Token,
			TargetPct:  target.Percent,
			CurrentPct: currentPct.InexactFloat64(),
			Deviation:  deviation.InexactFloat64(),
		}

		if deviation.IsPositive() {
			usd := deviation.Abs().Div(hundred).Mul(snapshot.TotalValueUSD)
			leg.Side = SideBuy
			leg.InputToken = r.quoteToken
			leg.OutputToken = target.Token
			leg.Amount = toUint64(usd.Shift(r.quoteDecimals))
		} else {
			holding, ok := snapshot.Holding(target.Token)
			if !ok {
				continue
			}
			amount, ok := sellAmount(holding, currentPct, deviation.Abs())
			if !ok {
				continue
			}
			leg.Side = SideSell
			leg.InputToken = target.Token
			leg.OutputToken = r.quoteToken
			leg.Amount = amount
		}

		legs = append(legs, leg)
	}

	return legs
}

func (r *Rebalancer) isQuoteToken(token string) bool {
	return tokens.Resolve(token) == tokens.Resolve(r.quoteToken)
}

// sellAmount sizes a sell as balance × |deviation| / current percent, which
// is the token amount worth |deviation| percent of the total value.
func sellAmount(holding Holding, currentPct, deviation decimal.Decimal) (uint64, bool) {
	if currentPct.IsZero() {
		return 0, false
	}
	return toUint64(holding.Balance.Mul(deviation).Div(currentPct)), true
}

// Rebalance fetches the portfolio when none is given, plans the legs and
// executes them in order. A failed swap is recorded and the pass goes on;
// a quote error stops the pass and is returned with the results so far.
func (r *Rebalancer) Rebalance(ctx context.Context, wallet string, targets []types.Allocation, portfolio types.Portfolio) ([]*types.SwapResult, error) {
	if portfolio == nil {
		var err error
		portfolio, err = r.client.GetPortfolio(ctx, wallet)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch portfolio")
		}
	}

	snapshot, err := NewSnapshot(portfolio)
	if err != nil {
		return nil, err
	}

	return r.Execute(ctx, wallet, r.Plan(snapshot, targets))
}

// Execute quotes and swaps each leg sequentially
func (r *Rebalancer) Execute(ctx context.Context, wallet string, legs []Leg) ([]*types.SwapResult, error) {
	results := make([]*types.SwapResult, 0, len(legs))

	for _, leg := range legs {
		quote, err := r.client.Quote(ctx, types.QuoteRequest{
			InputToken:  leg.InputToken,
			OutputToken: leg.OutputToken,
			Amount:      leg.Amount,
			SlippageBps: r.slippageBps,
		})
		if err != nil {
			return results, errors.Wrapf(err, "%s %s", leg.Side, leg.Token)
		}

		result := r.client.ExecuteSwap(ctx, types.SwapRequest{Quote: quote, Wallet: wallet})
		results = append(results, result)

		if result.Success {
			logger.Info("Rebalance leg executed",
				zap.String("token", leg.Token),
				zap.String("side", string(leg.Side)),
				zap.Uint64("amount", leg.Amount),
				zap.String("signature", result.Signature))
		} else {
			logger.Warn("Rebalance leg failed",
				zap.String("token", leg.Token),
				zap.String("side", string(leg.Side)),
				zap.String("error", result.Error))
		}
	}

	return results, nil
}

// MaxDeviation returns the largest |target - current| over targets, in
// percentage points
func MaxDeviation(snapshot *Snapshot, targets []types.Allocation) float64 {
	if snapshot == nil || snapshot.TotalValueUSD.IsZero() {
		return 0
	}
	largest := decimal.Zero
	for _, target := range targets {
		dev := decimal.NewFromFloat(target.Percent).Sub(snapshot.CurrentPercent(target.Token)).Abs()
		if dev.GreaterThan(largest) {
			largest = dev
		}
	}
	return largest.InexactFloat64()
}

// toUint64 truncates towards zero, clamping negatives to 0
func toUint64(d decimal.Decimal) uint64 {
	d = d.Truncate(0)
	if d.IsNegative() {
		return 0
	}
	return d.BigInt().Uint64()
}
