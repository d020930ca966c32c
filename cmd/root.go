package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"swap-engine/config"
)

var rootCmd = &cobra.Command{
	Use:   "swap-engine",
	Short: "Aggregate swap quotes and execute simulated swaps across chains",
	Long: `swap-engine queries every DEX and bridge that serves a route, picks the quote with
the largest output, simulates the resulting transaction and only then signs and
broadcasts it.

Examples:
  swap-engine quote 1.5 ETH to USDC --from-chain base --to-chain base
  swap-engine swap 0.01 BTC to ETH --recipient 0x123...
  swap-engine swap 100 USDC to ETH --from-chain arbitrum --to-chain arbitrum
  swap-engine list-tokens --chain solana
  swap-engine status <deposit-address>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// loadConfig reads the configuration and applies the logging settings to logrus
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return cfg, nil
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
