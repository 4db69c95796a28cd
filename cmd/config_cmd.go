package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agentdex/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the CLI configuration",
	Long: `Show or change the CLI configuration.

Settings are resolved from flags, then AGENTDEX_* environment variables,
then the config file ($HOME/.agentdex.yaml unless --config is given).`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the config file",
	Long: fmt.Sprintf(`Write a setting to the config file.

Known keys: %s

Examples:
  agentdex config set api_key sk-...
  agentdex config set wallet <pubkey>
  agentdex config set rebalance.quote_token USDT`, strings.Join(config.Keys, ", ")),
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Run:   runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run:   runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configShowCmd, configPathCmd)
}

func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	path, err := config.DefaultConfigPath()
	exitOnError(err)
	return path
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key, value := args[0], args[1]
	path := configFilePath()

	exitOnError(config.SetValue(path, key, value))

	color.Green("\n✓ Set %s in %s\n", key, path)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	settings := config.Get().Settings()

	if jsonOutput {
		printJSON(settings)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nKEY\tVALUE")
	for _, key := range config.SortedKeys(settings) {
		value := settings[key]
		if value == "" {
			value = color.HiBlackString("(unset)")
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	w.Flush()
	fmt.Println()
}

func runConfigPath(cmd *cobra.Command, args []string) {
	fmt.Println(configFilePath())
}
