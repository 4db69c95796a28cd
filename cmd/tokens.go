package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/pkg/tokens"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the token symbols that resolve to known mints",
	Long: `List the symbols agentdex resolves to mint addresses. Any other token can be
used by passing its mint address directly.

Examples:
  agentdex list-tokens
  agentdex list-tokens --symbol usd`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	list := tokens.List()
	if filterSymbol != "" {
		var filtered []tokens.Token
		for _, t := range list {
			if strings.Contains(t.Symbol, strings.ToUpper(filterSymbol)) {
				filtered = append(filtered, t)
			}
		}
		list = filtered
	}

	if jsonOutput {
		printJSON(list)
		return
	}

	if len(list) == 0 {
		color.Yellow("No tokens match '%s'.\n", filterSymbol)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 64))
	color.Green("                       KNOWN TOKENS")
	fmt.Println(strings.Repeat("=", 64))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSYMBOL\tMINT")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\n", color.YellowString(t.Symbol), t.Mint)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 64) + "\n")
}
