package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"agentdex/pkg/plan"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <plan>",
	Short: "Show the live drift of a rebalance plan",
	Long: `Fetch the plan's wallet and show how far each target has drifted, along with
the outcome of the plan's latest run.

Examples:
  agentdex status core
  agentdex status core --watch
  agentdex status core --watch --interval 30`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

type planStatus struct {
	Plan           *plan.PlanSummary `json:"plan"`
	TotalValueUSD  float64           `json:"total_value_usd"`
	MaxDeviation   float64           `json:"max_deviation"`
	NeedsRebalance bool              `json:"needs_rebalance"`
	LastRun        *plan.Run         `json:"last_run,omitempty"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch drift continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 15, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	planName := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	manager := newPlanManager()
	checker := plan.NewDriftChecker(newClient(cmd, nil))

	if !watchStatus {
		exitOnError(checkPlanStatus(cmd.Context(), manager, checker, planName, jsonOutput))
		return
	}

	if !jsonOutput {
		color.Cyan("Watching plan '%s' (press Ctrl+C to stop)...\n", planName)
	}

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		// Pick up runs recorded by the daemon since the last poll
		if err := manager.Reload(); err != nil {
			printError(err)
		}
		if err := checkPlanStatus(cmd.Context(), manager, checker, planName, jsonOutput); err != nil {
			printError(err)
		}

		select {
		case <-cmd.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func checkPlanStatus(ctx context.Context, manager *plan.Manager, checker *plan.DriftChecker, planName string, jsonOutput bool) error {
	p, err := manager.GetPlan(planName)
	if err != nil {
		return err
	}

	s := startSpinner(jsonOutput, "Checking wallet...")
	info, err := checker.Check(ctx, p)
	s.Stop()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(planStatus{
			Plan:           p.ToSummary(),
			TotalValueUSD:  info.TotalValueUSD,
			MaxDeviation:   info.MaxDeviation,
			NeedsRebalance: checker.ExceedsThreshold(p, info),
			LastRun:        p.LastRun(),
		})
		return nil
	}

	displayPlanStatus(p, checker, info)
	return nil
}

func displayPlanStatus(p *plan.Plan, checker *plan.DriftChecker, info *plan.DriftInfo) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("  PLAN STATUS: %s  (%s)", p.Name, time.Now().Format("15:04:05"))
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Status:           %s\n", getStatusColor(p.Status))
	fmt.Printf("  Wallet:           %s\n", p.Wallet)
	fmt.Printf("  Total Value:      %s\n", color.GreenString("$%.2f", info.TotalValueUSD))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n  TOKEN\tTARGET\tCURRENT\tDEVIATION")
	for _, t := range p.Targets {
		current := info.Snapshot.CurrentPercent(t.Token)
		deviation := decimal.NewFromFloat(t.Percent).Sub(current)
		fmt.Fprintf(w, "  %s\t%.2f%%\t%s%%\t%s\n", t.Token, t.Percent, current.StringFixed(2), formatDeviation(deviation))
	}
	w.Flush()

	fmt.Printf("\n  Max Deviation:    %.2f points (threshold %.2f)\n", info.MaxDeviation, p.DriftThreshold)
	if checker.ExceedsThreshold(p, info) {
		color.Yellow("  Rebalance due on the next check.")
	} else {
		color.Green("  Within threshold.")
	}

	if last := p.LastRun(); last != nil {
		fmt.Println()
		displayRun(last)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
}

func formatDeviation(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		s = "+" + s
	}
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return color.YellowString(s)
	}
	return s
}
