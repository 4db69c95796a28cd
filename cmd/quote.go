package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/pkg/parser"
	"agentdex/pkg/tokens"
	"agentdex/pkg/types"
)

var quoteSlippageBps int

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <input-token> to <output-token>",
	Short: "Get a swap quote",
	Long: `Ask AgentDEX for the best route between two tokens without executing it.

Tokens are symbols (SOL, USDC, USDT, JUP, BONK, WIF, PYTH) or mint addresses.
The amount is in the input token's smallest units.

Examples:
  agentdex quote 1000000000 SOL to USDC
  agentdex quote 100000000 USDC to JUP --slippage-bps 100
  agentdex quote 5000 BONK to EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --json`,
	Args: cobra.MinimumNArgs(4),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().IntVar(&quoteSlippageBps, "slippage-bps", 0, "Slippage tolerance in basis points (default from config)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseSwapArgs(args)
	exitOnError(err)
	req.SlippageBps = quoteSlippageBps

	apiClient := newClient(cmd, nil)

	s := startSpinner(jsonOutput, "Fetching quote...")
	quote, err := apiClient.Quote(context.Background(), *req)
	s.Stop()
	exitOnError(err)

	if jsonOutput {
		printJSON(quote)
		return
	}

	displayQuote(quote, req)
}

func displayQuote(quote *types.Quote, req *types.QuoteRequest) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", quote.InputAmount, color.YellowString(tokenLabel(req.InputToken, quote.InputMint)))
	fmt.Printf("  To:                ~%s %s\n", quote.OutputAmount, color.YellowString(tokenLabel(req.OutputToken, quote.OutputMint)))
	fmt.Printf("  Minimum Received:  %s\n", quote.OtherAmountThreshold)
	fmt.Printf("  Price Impact:      %s\n", formatPriceImpact(quote.PriceImpactPct))
	if req.SlippageBps > 0 {
		fmt.Printf("  Slippage:          %d bps\n", req.SlippageBps)
	}
	fmt.Printf("  Input Mint:        %s\n", color.CyanString(quote.InputMint))
	fmt.Printf("  Output Mint:       %s\n", color.CyanString(quote.OutputMint))

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

// tokenLabel prefers the known symbol of a mint
func tokenLabel(input, mint string) string {
	if symbol := tokens.Symbol(mint); symbol != mint {
		return symbol
	}
	return input
}

func formatPriceImpact(pct float64) string {
	s := fmt.Sprintf("%.4f%%", pct)
	switch {
	case pct >= 5:
		return color.RedString(s)
	case pct >= 1:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}
