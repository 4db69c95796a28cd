package parser

import (
	"fmt"
	"strconv"
	"strings"

	"agentdex/pkg/types"
)

// ParseAllocations parses target allocations such as "SOL=60" or
// "SOL=60,USDC=40". Several args may be given and order is kept.
func ParseAllocations(args []string) ([]types.Allocation, error) {
	var allocations []types.Allocation
	seen := make(map[string]bool)

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			token, pct, ok := strings.Cut(part, "=")
			if !ok {
				token, pct, ok = strings.Cut(part, ":")
			}
			if !ok {
				return nil, fmt.Errorf("invalid allocation %q. Expected TOKEN=PERCENT (e.g., SOL=60)", part)
			}

			token = NormalizeTokenSymbol(token)
			if token == "" {
				return nil, fmt.Errorf("invalid allocation %q: token is required", part)
			}
			percent, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(pct), "%"), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid percentage in %q: %w", part, err)
			}
			if percent < 0 || percent > 100 {
				return nil, fmt.Errorf("percentage for %s must be between 0 and 100, got %g", token, percent)
			}
			if seen[token] {
				return nil, fmt.Errorf("duplicate allocation for %s", token)
			}
			seen[token] = true

			allocations = append(allocations, types.Allocation{Token: token, Percent: percent})
		}
	}

	if len(allocations) == 0 {
		return nil, fmt.Errorf("at least one allocation is required")
	}
	return allocations, nil
}

// TotalPercent sums the target percentages
func TotalPercent(allocations []types.Allocation) float64 {
	var total float64
	for _, a := range allocations {
		total += a.Percent
	}
	return total
}
