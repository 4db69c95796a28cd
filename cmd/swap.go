package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/pkg/parser"
	"agentdex/pkg/types"
)

var (
	swapWallet         string
	swapSlippageBps    int
	swapStaticSlippage bool
	noConfirm          bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <input-token> to <output-token>",
	Short: "Quote and execute a token swap",
	Long: `Fetch a quote, show it, and submit it for execution from your wallet.

IMPORTANT:
  - The amount is in the input token's smallest units
  - --wallet (or AGENTDEX_WALLET) must be the base58 public key of the wallet

Examples:
  agentdex swap 100000000 USDC to SOL --wallet <pubkey>
  agentdex swap 1000000000 SOL to USDC --wallet <pubkey> --slippage-bps 30 --static-slippage

  # Skip confirmation
  agentdex swap 1000000000 SOL to JUP --wallet <pubkey> --yes`,
	Args: cobra.MinimumNArgs(4),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVarP(&swapWallet, "wallet", "w", "", "Wallet public key (default from config)")
	swapCmd.Flags().IntVar(&swapSlippageBps, "slippage-bps", 0, "Slippage tolerance in basis points (default from config)")
	swapCmd.Flags().BoolVar(&swapStaticSlippage, "static-slippage", false, "Disable dynamic slippage")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseSwapArgs(args)
	exitOnError(err)
	req.SlippageBps = swapSlippageBps

	wallet, err := resolveWallet(swapWallet)
	exitOnError(err)

	apiClient := newClient(cmd, nil)
	ctx := context.Background()

	s := startSpinner(jsonOutput, "Fetching quote...")
	quote, err := apiClient.Quote(ctx, *req)
	s.Stop()
	exitOnError(err)

	if !jsonOutput {
		displayQuote(quote, req)
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	s = startSpinner(jsonOutput, "Executing swap...")
	result := apiClient.ExecuteSwap(ctx, types.SwapRequest{
		Quote:          quote,
		Wallet:         wallet,
		StaticSlippage: swapStaticSlippage,
	})
	s.Stop()

	if jsonOutput {
		printJSON(result)
	} else {
		displaySwapResult(result)
	}

	if !result.Success {
		os.Exit(1)
	}
}

func displaySwapResult(result *types.SwapResult) {
	if result.Success {
		color.Green("\n✓ Swap submitted successfully!")
		fmt.Printf("  Transaction:   %s\n", color.CyanString(result.Signature))
		fmt.Printf("  Input Amount:  %s\n", result.InputAmount)
		fmt.Printf("  Output Amount: ~%s\n", result.OutputAmount)
		fmt.Printf("  Price Impact:  %s\n\n", formatPriceImpact(result.PriceImpactPct))
		return
	}

	color.Red("\n✗ Swap failed")
	fmt.Printf("  Input Amount:  %s\n", result.InputAmount)
	fmt.Printf("  Error:         %s\n\n", color.RedString(result.Error))
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
