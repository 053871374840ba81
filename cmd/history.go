package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	refreshHistory bool
	pendingOnly    bool
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted swaps",
	Long: `List swaps submitted from this machine, newest first.

Examples:
  kyberswap-xchain history
  kyberswap-xchain history --pending
  kyberswap-xchain history --refresh`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "remove <swap-id>",
	Short: "Remove a swap from history",
	Args:  cobra.ExactArgs(1),
	Run:   runHistoryRemove,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyRemoveCmd)

	historyCmd.Flags().BoolVarP(&refreshHistory, "refresh", "r", false, "Check the status of unsettled swaps first")
	historyCmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show unsettled swaps")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of swaps to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	if refreshHistory {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Refreshing pending swaps..."
			s.Start()
		}

		ctx, cancel := commandContext(2 * rt.cfg.AdapterTimeout)
		checked, err := rt.poller.Refresh(ctx)
		cancel()
		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if !jsonOutput {
			fmt.Printf("\nRefreshed %d pending swaps\n", len(checked))
		}
	}

	swaps := rt.store.List()
	if pendingOnly {
		swaps = rt.store.Pending()
	}
	if historyLimit > 0 && len(swaps) > historyLimit {
		swaps = swaps[:historyLimit]
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(swaps, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayHistory(swaps)
}

func runHistoryRemove(cmd *cobra.Command, args []string) {
	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	if err := rt.store.Delete(args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Removed swap %s", args[0]))
}

func displayHistory(swaps []types.TxResult) {
	if len(swaps) == 0 {
		fmt.Println("\nNo swaps found.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	color.Green("                                        SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 100))

	for _, tx := range swaps {
		fmt.Printf("\n  %s  %s  %s\n",
			color.CyanString(tx.ID),
			time.UnixMilli(tx.TimestampMs).Format("2006-01-02 15:04"),
			getColoredStatus(tx.Status))
		fmt.Printf("    %s %s (%s) -> %s %s (%s) via %s\n",
			formatAmount(tx.InputAmount, tx.SourceToken), color.YellowString(tx.SourceToken.Symbol), tx.SourceChain,
			formatAmount(tx.OutputAmount, tx.TargetToken), color.YellowString(tx.TargetToken.Symbol), tx.TargetChain,
			tx.AdapterName)
		fmt.Printf("    %s\n", color.HiBlackString(tx.SourceTxHash))
	}

	fmt.Println("\n" + strings.Repeat("=", 100))
	fmt.Printf("\nTotal: %d swaps\n\n", len(swaps))
}
