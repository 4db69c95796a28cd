package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/pkg/rebalance"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio [wallet]",
	Short: "Show a wallet's holdings and allocation",
	Long: `Fetch a wallet's portfolio from AgentDEX. With --json the API response is
printed unchanged.

Examples:
  agentdex portfolio 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
  agentdex portfolio --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPortfolio,
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var walletArg string
	if len(args) == 1 {
		walletArg = args[0]
	}
	wallet, err := resolveWallet(walletArg)
	exitOnError(err)

	apiClient := newClient(cmd, nil)

	s := startSpinner(jsonOutput, "Fetching portfolio...")
	portfolio, err := apiClient.GetPortfolio(context.Background(), wallet)
	s.Stop()
	exitOnError(err)

	if jsonOutput {
		printJSON(portfolio)
		return
	}

	snapshot, err := rebalance.NewSnapshot(portfolio)
	exitOnError(err)
	displaySnapshot(wallet, snapshot)
}

func displaySnapshot(wallet string, snapshot *rebalance.Snapshot) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           PORTFOLIO")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Wallet:       %s\n", color.CyanString(wallet))
	fmt.Printf("  Total Value:  %s\n", color.GreenString("$%s", snapshot.TotalValueUSD.StringFixed(2)))

	if len(snapshot.Holdings) == 0 {
		color.Yellow("\n  No token holdings reported.\n")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n  TOKEN\tBALANCE\tVALUE (USD)\tALLOCATION")
	for _, h := range snapshot.Holdings {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s%%\n",
			h.Symbol,
			h.Balance.String(),
			h.ValueUSD.StringFixed(2),
			snapshot.CurrentPercent(h.Symbol).StringFixed(2))
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
