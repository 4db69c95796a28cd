package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentdex/config"
	"agentdex/pkg/client"
	"agentdex/pkg/httpclient"
	"agentdex/pkg/logger"
	"agentdex/pkg/metrics"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentdex",
	Short: "A CLI for Solana token swaps through the AgentDEX API",
	Long: `agentdex is a command-line tool for quoting and executing Solana token swaps
through the AgentDEX aggregation API, inspecting wallets, and keeping a wallet
at its target allocation with one-off or scheduled rebalances.

Amounts are always in the input token's smallest units
(1 SOL = 1000000000, 1 USDC = 1000000).

Examples:
  agentdex quote 1000000000 SOL to USDC
  agentdex swap 100000000 USDC to SOL --wallet <pubkey>
  agentdex portfolio <pubkey>
  agentdex rebalance SOL=60 USDC=40 --wallet <pubkey> --dry-run
  agentdex list-tokens`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().String("api-key", "", "AgentDEX API key (env: AGENTDEX_API_KEY)")
	rootCmd.PersistentFlags().String("base-url", "", "AgentDEX API base URL (env: AGENTDEX_API_URL)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $HOME/.agentdex.yaml)")

	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	_ = viper.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base-url"))
}

// initConfig loads the configuration and sets up logging before every command
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	if err := logger.InitLogger(level, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// newClient builds an AgentDEX client from the loaded configuration. A nil
// collector disables metrics.
func newClient(cmd *cobra.Command, collector *metrics.Collector) *client.AgentDEXClient {
	cfg := config.Get()

	opts := []httpclient.ClientOption{httpclient.WithTimeout(cfg.Timeout)}
	if cfg.MaxRetries > 0 {
		retry := httpclient.DefaultRetryConfig()
		retry.MaxRetries = cfg.MaxRetries
		opts = append(opts, httpclient.WithRetryConfig(retry))
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts = append(opts, httpclient.WithMiddleware(httpclient.LoggingMiddleware()))
	}

	clientCfg := client.Config{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
	}
	if collector != nil {
		opts = append(opts, httpclient.WithMetricsCollector(collector))
		clientCfg.SwapRecorder = collector
	}

	return client.NewAgentDEXClient(clientCfg, opts...)
}

// resolveWallet returns the --wallet flag, falling back to the configured
// wallet, and checks that it is a valid Solana public key
func resolveWallet(flagValue string) (string, error) {
	wallet := flagValue
	if wallet == "" {
		wallet = config.Get().Wallet
	}
	if wallet == "" {
		return "", fmt.Errorf("wallet is required: pass --wallet or set AGENTDEX_WALLET")
	}
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return "", fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	return wallet, nil
}

func startSpinner(jsonOutput bool, suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " " + suffix
		s.Start()
	}
	return s
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
}

func exitOnError(err error) {
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}
