package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/config"
	"agentdex/pkg/parser"
	"agentdex/pkg/rebalance"
	"agentdex/pkg/types"
)

var (
	rebalanceWallet      string
	rebalanceDryRun      bool
	rebalanceSlippageBps int
	rebalanceYes         bool
)

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance <TOKEN=PERCENT>...",
	Short: "Swap a wallet towards target allocations",
	Long: `Compare the wallet's current allocation with the targets and swap the
difference in one pass, in the order the targets are given.

  - Deviations under 1 percentage point are ignored
  - Underweight tokens are bought with the quote token (USDC by default)
  - Overweight tokens are sold into the quote token
  - A target on the quote token itself is reached through the other swaps
  - A failed swap does not stop the remaining swaps

Examples:
  agentdex rebalance SOL=60 USDC=40 --wallet <pubkey> --dry-run
  agentdex rebalance SOL=50,JUP=25,USDC=25 --wallet <pubkey> --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runRebalance,
}

func init() {
	rootCmd.AddCommand(rebalanceCmd)

	rebalanceCmd.Flags().StringVarP(&rebalanceWallet, "wallet", "w", "", "Wallet public key (default from config)")
	rebalanceCmd.Flags().BoolVar(&rebalanceDryRun, "dry-run", false, "Show the swaps without executing them")
	rebalanceCmd.Flags().IntVar(&rebalanceSlippageBps, "slippage-bps", 0, "Slippage tolerance in basis points (default from config)")
	rebalanceCmd.Flags().BoolVarP(&rebalanceYes, "yes", "y", false, "Skip confirmation prompt")
}

// newRebalancer builds a Rebalancer with the configured quote token
func newRebalancer(client rebalance.SwapClient, slippageBps int) *rebalance.Rebalancer {
	cfg := config.Get()
	return rebalance.New(client,
		rebalance.WithQuoteToken(cfg.Rebalance.QuoteToken, cfg.Rebalance.QuoteDecimals),
		rebalance.WithSlippageBps(slippageBps),
	)
}

func runRebalance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	targets, err := parser.ParseAllocations(args)
	exitOnError(err)

	wallet, err := resolveWallet(rebalanceWallet)
	exitOnError(err)

	if total := parser.TotalPercent(targets); !jsonOutput && math.Abs(total-100) > 0.01 {
		color.Yellow("\nWarning: targets add up to %.2f%%, not 100%%", total)
	}

	apiClient := newClient(cmd, nil)
	rebalancer := newRebalancer(apiClient, rebalanceSlippageBps)
	ctx := context.Background()

	s := startSpinner(jsonOutput, "Fetching portfolio...")
	portfolio, err := apiClient.GetPortfolio(ctx, wallet)
	s.Stop()
	exitOnError(err)

	snapshot, err := rebalance.NewSnapshot(portfolio)
	exitOnError(err)

	legs := rebalancer.Plan(snapshot, targets)

	if rebalanceDryRun || !jsonOutput {
		if jsonOutput {
			printJSON(map[string]any{"wallet": wallet, "dry_run": true, "legs": legs})
			return
		}
		displayLegs(snapshot, targets, legs)
	}

	if rebalanceDryRun {
		return
	}
	if len(legs) == 0 {
		if jsonOutput {
			printJSON([]*types.SwapResult{})
		} else {
			color.Green("Portfolio is already within 1 point of every target. Nothing to do.\n")
		}
		return
	}

	if !rebalanceYes && !jsonOutput {
		if !confirm(fmt.Sprintf("Execute %d swap(s)?", len(legs))) {
			fmt.Println("\nRebalance cancelled.")
			os.Exit(0)
		}
	}

	s = startSpinner(jsonOutput, "Rebalancing...")
	results, err := rebalancer.Execute(ctx, wallet, legs)
	s.Stop()

	if jsonOutput {
		out := map[string]any{"wallet": wallet, "results": results}
		if err != nil {
			out["error"] = err.Error()
		}
		printJSON(out)
	} else {
		displayRebalanceResults(legs, results)
	}
	exitOnError(err)
}

func displayLegs(snapshot *rebalance.Snapshot, targets []types.Allocation, legs []rebalance.Leg) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                              REBALANCE PLAN")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Total Value:  $%s\n", snapshot.TotalValueUSD.StringFixed(2))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n  TOKEN\tCURRENT\tTARGET\tDEVIATION")
	for _, t := range targets {
		current := snapshot.CurrentPercent(t.Token).InexactFloat64()
		fmt.Fprintf(w, "  %s\t%.2f%%\t%.2f%%\t%+.2f\n", t.Token, current, t.Percent, t.Percent-current)
	}
	w.Flush()

	if len(legs) == 0 {
		fmt.Println()
		return
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tSIDE\tTOKEN\tSWAP\tAMOUNT")
	for i, leg := range legs {
		side := color.GreenString(string(leg.Side))
		if leg.Side == rebalance.SideSell {
			side = color.RedString(string(leg.Side))
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s -> %s\t%d\n", i+1, side, leg.Token, leg.InputToken, leg.OutputToken, leg.Amount)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 80))
}

func displayRebalanceResults(legs []rebalance.Leg, results []*types.SwapResult) {
	succeeded := 0
	for i, result := range results {
		leg := legs[i]
		if result.Success {
			succeeded++
			fmt.Printf("  %s %s %s  %s\n", color.GreenString("✓"), leg.Side, leg.Token, color.CyanString(result.Signature))
		} else {
			fmt.Printf("  %s %s %s  %s\n", color.RedString("✗"), leg.Side, leg.Token, color.RedString(result.Error))
		}
	}
	for _, leg := range legs[len(results):] {
		fmt.Printf("  %s %s %s  not attempted\n", color.YellowString("-"), leg.Side, leg.Token)
	}

	fmt.Printf("\n  %d of %d swap(s) succeeded\n\n", succeeded, len(legs))
}
