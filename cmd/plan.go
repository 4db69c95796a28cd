package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentdex/config"
	"agentdex/pkg/logger"
	"agentdex/pkg/metrics"
	"agentdex/pkg/parser"
	"agentdex/pkg/plan"
)

var (
	// Plan creation flags
	planWallet         string
	planTargets        []string
	planDriftThreshold float64
	planInterval       time.Duration
	planDescription    string

	// Plan list flags
	planStatusFilter string

	// Daemon flags
	daemonCheckInterval time.Duration
	daemonMetricsAddr   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage scheduled rebalance plans",
	Long: `Create and manage plans that keep a wallet at its target allocation.

A plan stores a wallet, its targets and a drift threshold. While a plan is
active, 'agentdex plan daemon' checks the wallet periodically and rebalances
whenever any target is off by at least the threshold.

Plans are persisted across restarts and track their run history.`,
}

var planCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new rebalance plan",
	Long: `Create a new rebalance plan. Plans start paused.

Examples:
  # Keep 60/40 SOL/USDC, rebalance when 5 points off
  agentdex plan create core --wallet <pubkey> --target SOL=60 --target USDC=40

  # Check every 15 minutes, rebalance when 3 points off
  agentdex plan create degen --wallet <pubkey> \
    --target SOL=40,JUP=20,BONK=20,USDC=20 \
    --drift 3 --interval 15m`,
	Args: cobra.ExactArgs(1),
	Run:  runPlanCreate,
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rebalance plans",
	Long: `Display all rebalance plans with their current status.

Examples:
  agentdex plan list
  agentdex plan list --status active
  agentdex plan list --json`,
	Run: runPlanList,
}

var planViewCmd = &cobra.Command{
	Use:   "view <name>",
	Short: "View details of a specific plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlanView,
}

var planStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Activate a plan",
	Long: `Activate a plan so the daemon starts monitoring it. A running daemon picks
the change up within a minute.

Examples:
  agentdex plan start core`,
	Args: cobra.ExactArgs(1),
	Run:  runPlanStart,
}

var planStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Pause a plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlanStop,
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a plan",
	Long: `Permanently remove a plan and its history.

Note: Active plans must be stopped before deletion.`,
	Args: cobra.ExactArgs(1),
	Run:  runPlanDelete,
}

var planHistoryCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "View the rebalance runs of a plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlanHistory,
}

var planDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run daemon to monitor and rebalance all active plans",
	Long: `Start a daemon that monitors and rebalances all active plans.

The daemon will:
- Load all plans with status "active"
- Check each wallet on the plan's interval (default every 5 minutes)
- Rebalance when the largest deviation reaches the plan's drift threshold
- Check for plan changes every 60 seconds (new/started/stopped plans)
- Handle graceful shutdown on Ctrl+C

With --metrics-addr the daemon also serves Prometheus metrics on /metrics.`,
	Run: runPlanDaemon,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planCreateCmd, planListCmd, planViewCmd, planStartCmd,
		planStopCmd, planDeleteCmd, planHistoryCmd, planDaemonCmd)

	planCreateCmd.Flags().StringVarP(&planWallet, "wallet", "w", "", "Wallet public key (default from config)")
	planCreateCmd.Flags().StringSliceVarP(&planTargets, "target", "t", nil, "Target allocation TOKEN=PERCENT (repeatable)")
	planCreateCmd.Flags().Float64Var(&planDriftThreshold, "drift", plan.DefaultDriftThreshold, "Rebalance when any target is off by this many percentage points")
	planCreateCmd.Flags().DurationVar(&planInterval, "interval", 0, "How often the daemon checks this plan (default 5m, minimum 30s)")
	planCreateCmd.Flags().StringVar(&planDescription, "description", "", "Plan description (optional)")
	_ = planCreateCmd.MarkFlagRequired("target")

	planListCmd.Flags().StringVar(&planStatusFilter, "status", "", "Filter by status (active, paused)")

	planDaemonCmd.Flags().DurationVar(&daemonCheckInterval, "check-interval", plan.DefaultCheckInterval, "Default interval for plans without their own")
	planDaemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9102)")
}

func newPlanManager() *plan.Manager {
	manager, err := plan.NewManager(config.Get().PlanStoragePath)
	exitOnError(err)
	return manager
}

func runPlanCreate(cmd *cobra.Command, args []string) {
	planName := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	wallet, err := resolveWallet(planWallet)
	exitOnError(err)

	targets, err := parser.ParseAllocations(planTargets)
	exitOnError(err)

	manager := newPlanManager()
	newPlan, err := manager.CreatePlan(planName, planDescription, wallet, targets, planDriftThreshold, planInterval)
	exitOnError(err)

	if jsonOutput {
		printJSON(newPlan)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("           REBALANCE PLAN CREATED SUCCESSFULLY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Name:             %s\n", color.CyanString(newPlan.Name))
	fmt.Printf("  Wallet:           %s\n", newPlan.Wallet)
	fmt.Printf("  Targets:          %s\n", color.YellowString(plan.FormatTargets(newPlan.Targets)))
	fmt.Printf("  Drift Threshold:  %.2f points\n", newPlan.DriftThreshold)
	fmt.Printf("  Interval:         %s\n", planIntervalLabel(newPlan))
	fmt.Printf("  Status:           %s\n", getStatusColor(newPlan.Status))

	if total := parser.TotalPercent(newPlan.Targets); total < 99.99 {
		color.Yellow("\n  Targets add up to %.2f%%; the rest stays unmanaged.", total)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("\nTo activate the plan, run:")
	color.Cyan("  agentdex plan start %s\n", planName)
}

func runPlanList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	manager := newPlanManager()

	var plans []*plan.Plan
	if planStatusFilter != "" {
		plans = manager.ListPlansByStatus(plan.PlanStatus(planStatusFilter))
	} else {
		plans = manager.ListPlans()
	}

	if jsonOutput {
		summaries := make([]*plan.PlanSummary, len(plans))
		for i, p := range plans {
			summaries[i] = p.ToSummary()
		}
		printJSON(summaries)
		return
	}

	if len(plans) == 0 {
		color.Yellow("No rebalance plans found.\n")
		fmt.Println("\nCreate a new plan with:")
		color.Cyan("  agentdex plan create <name> --wallet <pubkey> --target SOL=60 --target USDC=40\n")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                        REBALANCE PLANS")
	fmt.Println(strings.Repeat("=", 100))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nNAME\tWALLET\tTARGETS\tDRIFT\tSTATUS\tRUNS\tLAST RUN")
	for _, p := range plans {
		lastRun := "-"
		if last := p.LastRun(); last != nil {
			lastRun = fmt.Sprintf("%s (%s)", last.Timestamp.Format("2006-01-02 15:04"), last.Status())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%s\t%d\t%s\n",
			p.Name, truncateString(p.Wallet, 12), plan.FormatTargets(p.Targets),
			p.DriftThreshold, getStatusColor(p.Status), p.RunCount, lastRun)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 100) + "\n")
}

func runPlanView(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	p, err := newPlanManager().GetPlan(args[0])
	exitOnError(err)

	if jsonOutput {
		printJSON(p)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                       REBALANCE PLAN DETAILS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Name:              %s\n", color.CyanString(p.Name))
	if p.Description != "" {
		fmt.Printf("  Description:       %s\n", p.Description)
	}
	fmt.Printf("  Status:            %s\n", getStatusColor(p.Status))
	fmt.Printf("  Wallet:            %s\n", p.Wallet)
	fmt.Printf("  Drift Threshold:   %.2f points\n", p.DriftThreshold)
	fmt.Printf("  Interval:          %s\n", planIntervalLabel(p))
	fmt.Printf("  Created:           %s\n", p.Created.Format(time.RFC1123))
	fmt.Printf("  Last Updated:      %s\n", p.LastUpdated.Format(time.RFC1123))

	fmt.Println("\n  Targets:")
	for _, t := range p.Targets {
		fmt.Printf("    %-8s %6.2f%%\n", t.Token, t.Percent)
	}

	fmt.Printf("\n  Runs:              %d\n", p.RunCount)
	if last := p.LastRun(); last != nil {
		fmt.Println()
		displayRun(last)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func runPlanStart(cmd *cobra.Command, args []string) {
	planName := args[0]
	exitOnError(newPlanManager().StartPlan(planName))

	color.Green("\n✓ Rebalance plan '%s' has been activated!\n", planName)
	fmt.Println("Make sure the daemon is running:")
	color.Cyan("  agentdex plan daemon\n")
}

func runPlanStop(cmd *cobra.Command, args []string) {
	planName := args[0]
	exitOnError(newPlanManager().StopPlan(planName))

	color.Green("\n✓ Rebalance plan '%s' has been stopped.\n", planName)
	fmt.Println("To resume, run:")
	color.Cyan("  agentdex plan start %s\n", planName)
}

func runPlanDelete(cmd *cobra.Command, args []string) {
	planName := args[0]
	exitOnError(newPlanManager().DeletePlan(planName))

	color.Green("\n✓ Rebalance plan '%s' has been deleted.\n", planName)
}

func runPlanHistory(cmd *cobra.Command, args []string) {
	planName := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	history, err := newPlanManager().GetRunHistory(planName)
	exitOnError(err)

	if jsonOutput {
		printJSON(history)
		return
	}

	if len(history) == 0 {
		color.Yellow("\nNo runs recorded for plan '%s'.\n", planName)
		return
	}

	swaps, succeeded := 0, 0
	for _, run := range history {
		swaps += len(run.Results)
		succeeded += run.Succeeded
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            RUN HISTORY: %s", planName)
	fmt.Println(strings.Repeat("=", 90))

	fmt.Printf("\n  Runs:             %s\n", color.CyanString("%d", len(history)))
	fmt.Printf("  Swaps Attempted:  %s\n", color.CyanString("%d", swaps))
	fmt.Printf("  Swaps Succeeded:  %s\n", color.GreenString("%d", succeeded))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTIME\tRUN\tMAX DEV\tLEGS\tOK\tFAILED\tSTATUS")
	for i := len(history) - 1; i >= 0; i-- {
		run := history[i]
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%d\t%s\n",
			run.Timestamp.Format("2006-01-02 15:04:05"), truncateString(run.ID, 8),
			run.MaxDeviation, run.Legs, run.Succeeded, run.Failed, getRunStatusColor(run.Status()))
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}

func runPlanDaemon(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	manager := newPlanManager()

	activePlans := manager.GetActivePlans()
	if len(activePlans) == 0 {
		color.Yellow("\nNo active plans found. The daemon will pick up plans started later.\n")
		fmt.Println("\nTo create and start a plan:")
		color.Cyan("  1. Create: agentdex plan create <name> --wallet <pubkey> --target SOL=60 --target USDC=40")
		color.Cyan("  2. Start:  agentdex plan start <name>\n")
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                  AGENTDEX REBALANCE DAEMON")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\nLoading %d active plan(s)...\n\n", len(activePlans))

	for _, p := range activePlans {
		fmt.Printf("  [%s] %s\n", color.GreenString("ACTIVE"), color.CyanString(p.Name))
		fmt.Printf("      Targets:   %s\n", plan.FormatTargets(p.Targets))
		fmt.Printf("      Drift:     %.2f points, checked every %s\n", p.DriftThreshold, planIntervalLabel(p))
		if p.RunCount > 0 {
			fmt.Printf("      History:   %d run(s)\n", p.RunCount)
		}
		fmt.Println()
	}

	var collector *metrics.Collector
	metricsAddr := daemonMetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	var server *http.Server
	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		var err error
		collector, err = metrics.NewCollector(registry)
		exitOnError(err)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	apiClient := newClient(cmd, collector)
	executor := plan.NewExecutor(manager, apiClient, newRebalancer(apiClient, 0))
	executor.SetCheckInterval(daemonCheckInterval)

	fmt.Println(strings.Repeat("=", 70))
	color.Green("\nStarting executor...")
	color.Cyan("• Checking wallets every %s unless a plan sets its own interval", daemonCheckInterval)
	color.Cyan("• Checking for plan changes every 60 seconds")
	if server != nil {
		color.Cyan("• Serving metrics on %s/metrics", metricsAddr)
	}
	color.Magenta("• You can create/start/stop plans in another terminal")
	color.Yellow("• Press Ctrl+C to stop gracefully\n")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitOnError(executor.Start(ctx))

	<-ctx.Done()

	color.Yellow("\n\nShutting down gracefully...")
	executor.Stop()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	color.Green("✓ Daemon stopped.\n")
}

func displayRun(run *plan.Run) {
	fmt.Printf("  Last Run:          %s (%s)\n", run.Timestamp.Format(time.RFC1123), getRunStatusColor(run.Status()))
	fmt.Printf("    Max Deviation:   %.2f points\n", run.MaxDeviation)
	fmt.Printf("    Swaps:           %d ok, %d failed of %d planned\n", run.Succeeded, run.Failed, run.Legs)
	for _, result := range run.Results {
		if result.Success {
			fmt.Printf("    %s %s\n", color.GreenString("✓"), color.CyanString(result.Signature))
		} else {
			fmt.Printf("    %s %s\n", color.RedString("✗"), color.RedString(result.Error))
		}
	}
	if run.Error != "" {
		fmt.Printf("    Error:           %s\n", color.RedString(run.Error))
	}
}

func planIntervalLabel(p *plan.Plan) string {
	if p.Interval == 0 {
		return "daemon default"
	}
	return time.Duration(p.Interval).String()
}

func getStatusColor(status plan.PlanStatus) string {
	switch status {
	case plan.StatusActive:
		return color.GreenString(string(status))
	case plan.StatusPaused:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func getRunStatusColor(status string) string {
	switch status {
	case "ok":
		return color.GreenString(status)
	case "no-op":
		return color.CyanString(status)
	case "partial":
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
