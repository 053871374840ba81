package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <swap-id>",
	Short: "Check the status of a swap",
	Long: `Check the execution status of a submitted swap by its history id.

The provider that executed the swap is asked for its progress and the
history record is updated with the answer.

Examples:
  kyberswap-xchain status 5f1c...
  kyberswap-xchain status 5f1c... --watch
  kyberswap-xchain status 5f1c... --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 0, "Polling interval in seconds (defaults to config)")
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	if watchInterval > 0 {
		if err := rt.setPollInterval(time.Duration(watchInterval) * time.Second); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	tx, err := rt.store.Get(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchSwapStatus(rt, tx, jsonOutput)
		return
	}
	checkSwapStatus(rt, tx, jsonOutput)
}

func checkSwapStatus(rt *runtime, tx types.TxResult, jsonOutput bool) {
	if !tx.Status.IsTerminal() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Checking swap status..."
			s.Start()
		}

		ctx, cancel := commandContext(rt.cfg.AdapterTimeout)
		updated, err := rt.poller.Check(ctx, tx)
		cancel()
		if !jsonOutput {
			s.Stop()
		}

		if err != nil {
			printError(err)
			os.Exit(1)
		}
		tx = updated
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(tx, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displaySwap(tx)
	}
}

func watchSwapStatus(rt *runtime, tx types.TxResult, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (ID: %s)\n", color.CyanString(tx.ID))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", rt.cfg.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	final, err := rt.poller.Poll(ctx, tx, func(updated types.TxResult) {
		fmt.Printf("  %s  %s\n", time.Now().Format("15:04:05"), getColoredStatus(updated.Status))
	})
	if err != nil && ctx.Err() == nil {
		color.Red("Error: %v", err)
	}

	displaySwap(final)
}

func getColoredStatus(status types.SwapState) string {
	switch status {
	case types.StatusSuccess:
		return color.GreenString(string(status))
	case types.StatusProcessing:
		return color.YellowString(string(status))
	case types.StatusFailed:
		return color.RedString(string(status))
	case types.StatusRefunded:
		return color.MagentaString(string(status))
	default:
		return string(status)
	}
}
