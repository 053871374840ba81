package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/aggregator"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	swapFlags    requestFlags
	pickProvider string
	noConfirm    bool
	waitSettle   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Quote a swap and execute the best route",
	Long: `Collect quotes from every compatible provider, then sign and submit the
best one (or the one named by --provider) with the configured wallets.

IMPORTANT:
  - A signer for the source chain family must be configured
  - --recipient defaults to your wallet on the destination chain family

Examples:
  # Cross-chain swap
  kyberswap-xchain swap 100 USDC on eth to USDC on arb

  # Force a provider and wait for the destination transfer
  kyberswap-xchain swap 1 SOL to USDC on base --provider near-intents --wait

  # Bitcoin deposit, skipping the confirmation
  kyberswap-xchain swap 0.01 BTC to USDC on eth --recipient 0x123... --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapFlags.register(swapCmd)

	swapCmd.Flags().StringVar(&pickProvider, "provider", "", "Execute this provider's quote instead of the best one")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVarP(&waitSettle, "wait", "w", false, "Poll the swap until it settles")
}

func runSwap(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := commandContext(rt.cfg.AdapterTimeout)
	req, err := rt.buildRequest(ctx, args, swapFlags)
	cancel()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !req.Wallet.Connected(req.FromChain.Family()) {
		printError(fmt.Errorf("%w: configure a %s signer to swap from %s", provider.ErrWalletNotConnected, req.FromChain.Family(), req.FromChain))
		os.Exit(1)
	}

	final, err := fetchQuotes(rt, req, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quote, err := selectQuote(final, pickProvider)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuotes(final, req)
		fmt.Printf("Selected: %s\n", color.CyanString(quoteLabel(quote, req)))
	}

	if verbose {
		fmt.Printf("\nRequest:\n")
		reqJSON, _ := json.MarshalIndent(quote.Normalized.Request, "", "  ")
		fmt.Println(string(reqJSON))
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = fmt.Sprintf(" Submitting through %s...", quote.Provider())
		s.Start()
	}

	tx, err := rt.dispatcher.Execute(context.Background(), quote, rt.wallets.Wallet())
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(describeExecError(err))
		os.Exit(1)
	}

	if !jsonOutput {
		color.Green("\n✓ Swap submitted!")
		displaySwap(*tx)
	}

	if waitSettle {
		settled, err := waitForSwap(rt, *tx, jsonOutput)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		tx = &settled
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tx, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if !tx.Status.IsTerminal() {
		fmt.Println("\nYou can monitor the swap status using:")
		color.Cyan("  kyberswap-xchain status %s --watch\n", tx.ID)
	}
}

// selectQuote returns the best quote, or the one from name when set
func selectQuote(snap aggregator.Snapshot, name string) (provider.Quote, error) {
	if name == "" {
		best, ok := snap.Best()
		if !ok {
			return provider.Quote{}, fmt.Errorf("no quotes available")
		}
		return best, nil
	}
	for _, q := range snap.Quotes {
		if strings.EqualFold(q.Provider(), name) {
			return q, nil
		}
	}
	return provider.Quote{}, fmt.Errorf("provider '%s' returned no quote", name)
}

func describeExecError(err error) error {
	var submission *provider.SubmissionError
	switch {
	case errors.Is(err, provider.ErrUserRejected):
		return fmt.Errorf("swap rejected: %w", err)
	case errors.As(err, &submission):
		return fmt.Errorf("swap was not submitted, no funds moved: %w", err)
	default:
		return err
	}
}

// waitForSwap polls tx until it settles, printing each status change
func waitForSwap(rt *runtime, tx types.TxResult, quiet bool) (types.TxResult, error) {
	if !quiet {
		fmt.Printf("\nWaiting for the swap to settle (checking every %s). Press Ctrl+C to stop.\n", rt.cfg.PollInterval)
	}
	last := tx.Status
	return rt.poller.Poll(context.Background(), tx, func(updated types.TxResult) {
		if quiet || updated.Status == last {
			return
		}
		last = updated.Status
		fmt.Printf("  %s  %s\n", time.Now().Format("15:04:05"), getColoredStatus(updated.Status))
	})
}

func displaySwap(tx types.TxResult) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:              %s\n", color.CyanString(tx.ID))
	fmt.Printf("  Provider:        %s\n", tx.AdapterName)
	fmt.Printf("  Status:          %s\n", getColoredStatus(tx.Status))
	fmt.Printf("  From:            %s %s on %s\n", formatAmount(tx.InputAmount, tx.SourceToken), color.YellowString(tx.SourceToken.Symbol), tx.SourceChain)
	fmt.Printf("  To:              ~%s %s on %s\n", formatAmount(tx.OutputAmount, tx.TargetToken), color.YellowString(tx.TargetToken.Symbol), tx.TargetChain)
	fmt.Printf("  Source Tx:       %s\n", color.HiBlackString(tx.SourceTxHash))
	if tx.TargetTxHash != "" {
		fmt.Printf("  Destination Tx:  %s\n", color.HiBlackString(tx.TargetTxHash))
	}
	if tx.InputUSD > 0 {
		fmt.Printf("  Value:           $%.2f -> $%.2f\n", tx.InputUSD, tx.OutputUSD)
	}
	fmt.Printf("  Submitted:       %s\n", time.UnixMilli(tx.TimestampMs).Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func formatAmount(units string, token types.TokenRef) string {
	amount, ok := new(big.Int).SetString(units, 10)
	if !ok {
		return units
	}
	return types.FormatUnits(amount, token)
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
