package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"agentdex/pkg/parser"
	"agentdex/pkg/tokens"
	"agentdex/pkg/types"
)

var pricesCmd = &cobra.Command{
	Use:   "prices <token>...",
	Short: "Show USD prices for tokens",
	Long: `Fetch USD prices for one or more tokens. Symbols are resolved to mints
first. With --json the API response is printed unchanged.

Examples:
  agentdex prices SOL JUP BONK
  agentdex prices EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v --json`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPrices,
}

func init() {
	rootCmd.AddCommand(pricesCmd)
}

func runPrices(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	apiClient := newClient(cmd, nil)

	s := startSpinner(jsonOutput, "Fetching prices...")
	prices, err := apiClient.GetPrices(context.Background(), args)
	s.Stop()
	exitOnError(err)

	if jsonOutput {
		printJSON(prices)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTOKEN\tPRICE (USD)\tMINT")
	for _, token := range args {
		mint := tokens.Resolve(token)
		symbol := parser.NormalizeTokenSymbol(token)
		price, ok := lookupPrice(prices, mint, token, symbol)
		if !ok {
			fmt.Fprintf(w, "%s\t%s\t%s\n", symbol, color.YellowString("n/a"), mint)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", symbol, formatPrice(price), mint)
	}
	w.Flush()
	fmt.Println()
}

// lookupPrice finds a token's entry under any of keys, at the top level or
// under "data". Entries that are objects yield their "price" field.
func lookupPrice(prices types.Prices, keys ...string) (any, bool) {
	scopes := []map[string]any{prices}
	if data, err := cast.ToStringMapE(prices["data"]); err == nil {
		scopes = append(scopes, data)
	}

	for _, scope := range scopes {
		for _, key := range keys {
			entry, ok := scope[key]
			if !ok {
				continue
			}
			if fields, err := cast.ToStringMapE(entry); err == nil {
				entry, ok = fields["price"]
				if !ok {
					continue
				}
			}
			return entry, true
		}
	}
	return nil, false
}

// formatPrice renders numeric prices and falls back to the raw value
func formatPrice(v any) string {
	if f, err := types.ToFloat64(v); err == nil {
		return color.GreenString("$%.6g", f)
	}
	return fmt.Sprint(v)
}
