package rebalance

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"agentdex/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Holding is one token position of a wallet
type Holding struct {
	Symbol   string
	Balance  decimal.Decimal
	ValueUSD decimal.Decimal
}

// Snapshot is the typed view of a portfolio payload used for allocation math
type Snapshot struct {
	TotalValueUSD decimal.Decimal
	Holdings      []Holding

	// A symbol listed twice sizes sells from its first record and
	// measures allocation from its last
	first map[string]Holding
	last  map[string]Holding
}

// NewSnapshot reads totalValueUsd and tokens[{symbol, balance, valueUsd}]
// out of a raw portfolio payload. Missing numbers count as zero and entries
// without a symbol are ignored.
func NewSnapshot(portfolio types.Portfolio) (*Snapshot, error) {
	total, err := decimalField(portfolio, "totalValueUsd")
	if err != nil {
		return nil, errors.Wrap(err, "invalid totalValueUsd")
	}

	snapshot := &Snapshot{
		TotalValueUSD: total,
		first:         make(map[string]Holding),
		last:          make(map[string]Holding),
	}

	rawTokens, ok := portfolio["tokens"]
	if !ok || rawTokens == nil {
		return snapshot, nil
	}
	entries, err := cast.ToSliceE(rawTokens)
	if err != nil {
		return nil, errors.Wrap(err, "invalid tokens list")
	}

	for i, entry := range entries {
		fields, err := cast.ToStringMapE(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid token entry %d", i)
		}
		symbol, _ := types.ToString(fields["symbol"])
		if symbol == "" {
			continue
		}
		balance, err := decimalField(fields, "balance")
		if err != nil {
			return nil, errors.Wrapf(err, "invalid balance for %s", symbol)
		}
		value, err := decimalField(fields, "valueUsd")
		if err != nil {
			return nil, errors.Wrapf(err, "invalid valueUsd for %s", symbol)
		}

		holding := Holding{Symbol: symbol, Balance: balance, ValueUSD: value}
		snapshot.Holdings = append(snapshot.Holdings, holding)
		if _, seen := snapshot.first[symbol]; !seen {
			snapshot.first[symbol] = holding
		}
		snapshot.last[symbol] = holding
	}

	return snapshot, nil
}

// Holding looks up a position by its exact symbol
func (s *Snapshot) Holding(symbol string) (Holding, bool) {
	h, ok := s.first[symbol]
	return h, ok
}

// CurrentPercent is the share of the total value held in symbol, 0 when not held
func (s *Snapshot) CurrentPercent(symbol string) decimal.Decimal {
	h, ok := s.last[symbol]
	if !ok || s.TotalValueUSD.IsZero() {
		return decimal.Zero
	}
	return h.ValueUSD.Div(s.TotalValueUSD).Mul(hundred)
}

func decimalField(fields map[string]any, key string) (decimal.Decimal, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return decimal.Zero, nil
	}

	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	}

	f, err := types.ToFloat64(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(f), nil
}
