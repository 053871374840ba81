package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kyberswap-xchain",
	Short: "Cross-chain quote aggregation and swap execution",
	Long: `kyberswap-xchain collects quotes for a swap from every compatible bridge
and aggregator, ranks them by net output and executes the one you pick.

Same-chain EVM swaps go through KyberSwap. Cross-chain swaps are quoted by the
quote stream when configured, falling back to LI.FI, deBridge and NEAR Intents.

Examples:
  kyberswap-xchain quote 100 USDC on eth to USDC on arb
  kyberswap-xchain swap 1 SOL to USDC on base --yes
  kyberswap-xchain status <swap-id> --watch
  kyberswap-xchain history --refresh
  kyberswap-xchain serve`,
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

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
