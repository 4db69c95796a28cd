package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"agentdex/pkg/types"
)

// mint addresses are case sensitive so only the keywords are matched loosely
var swapPattern = regexp.MustCompile(`(?i)^(?:swap\s+)?(\d+)\s+(\S+)\s+to\s+(\S+)$`)

// ParseSwapCommand parses a swap phrase with the amount in the input
// token's smallest units
// Examples:
//   - "swap 1000000000 SOL to USDC"
//   - "100000000 usdc to sol"
//   - "5000 BONK to JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
func ParseSwapCommand(command string) (*types.QuoteRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: '<amount> <token> to <token>' (e.g., '1000000000 SOL to USDC')")
	}

	amount, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", matches[1], err)
	}

	req := &types.QuoteRequest{
		InputToken:  NormalizeTokenSymbol(matches[2]),
		OutputToken: NormalizeTokenSymbol(matches[3]),
		Amount:      amount,
	}
	if err := ValidateQuoteRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ParseSwapArgs joins positional CLI args and parses them as a swap phrase
func ParseSwapArgs(args []string) (*types.QuoteRequest, error) {
	return ParseSwapCommand(strings.Join(args, " "))
}

// ValidateQuoteRequest validates that a quote request has all required fields
func ValidateQuoteRequest(req *types.QuoteRequest) error {
	if req.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if req.InputToken == "" {
		return fmt.Errorf("input token is required")
	}
	if req.OutputToken == "" {
		return fmt.Errorf("output token is required")
	}
	if req.InputToken == req.OutputToken {
		return fmt.Errorf("input and output token must differ")
	}
	return nil
}

// NormalizeTokenSymbol uppercases short symbols and leaves mint addresses alone
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) > 10 {
		return symbol
	}
	symbol = strings.ToUpper(symbol)

	aliases := map[string]string{
		"WSOL": "SOL",
		"$WIF": "WIF",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
