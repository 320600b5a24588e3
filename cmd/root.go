package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "tokenflight",
	Short: "A CLI for cross-chain swaps across EVM chains and Solana",
	Long: `tokenflight quotes cross-chain token swaps, ranks the competing routes
and executes the best one with a local EVM or Solana wallet, tracking the
order until it settles.

Tokens are written as namespace:reference:address, for example
eip155:1:0xA0b86991c6218b36c1d19d4a2e9eB0cE3606eB48 (USDC on Ethereum) or
solana:mainnet:So11111111111111111111111111111111111111112 (SOL).

Examples:
  tokenflight quote 100 eip155:1:0xA0b8...eB48 to solana:mainnet:So111...1112
  tokenflight swap 100 eip155:1:0xA0b8...eB48 to solana:mainnet:So111...1112 --yes
  tokenflight status <order-id> --address 0x1234...abcd --watch
  tokenflight tokens search USDC --chain 1`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.tokenflight.yaml)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
