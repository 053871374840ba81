package cmd

import (
	"encoding/json"
	"fmt"
	"math"
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

var quoteFlags requestFlags

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> [on <chain>] to <token> [on <chain>]",
	Short: "Compare quotes from every compatible provider",
	Long: `Run one aggregation round and print the ranked quotes.

Examples:
  kyberswap-xchain quote 100 USDC on eth to USDC on arb
  kyberswap-xchain quote 1 ETH to SOL --recipient <solana-addr>
  kyberswap-xchain quote 0.5 ETH on base to USDC on base`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteFlags.register(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	ctx, cancel := commandContext(rt.cfg.StreamTimeout + rt.cfg.AdapterTimeout)
	defer cancel()

	req, err := rt.buildRequest(ctx, args, quoteFlags)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	final, err := fetchQuotes(rt, req, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printQuotesJSON(final)
		return
	}
	displayQuotes(final, req)
}

// fetchQuotes runs a round behind a spinner that tracks the phase
func fetchQuotes(rt *runtime, req types.QuoteRequest, quiet bool) (aggregator.Snapshot, error) {
	ctx, cancel := commandContext(rt.cfg.StreamTimeout + rt.cfg.AdapterTimeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !quiet {
		s.Suffix = " Fetching quotes..."
		s.Start()
		defer s.Stop()
	}

	return rt.collect(ctx, req, func(snap aggregator.Snapshot) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" Fetching quotes (%s, %d received)...", snap.Phase, len(snap.Quotes))
		s.Unlock()
	})
}

type quoteJSON struct {
	Provider           string   `json:"provider"`
	OutputAmount       string   `json:"outputAmount"`
	NetOutputAmount    string   `json:"netOutputAmount"`
	FormattedOutput    string   `json:"formattedOutputAmount"`
	OutputUSD          float64  `json:"outputUsd"`
	TimeEstimate       float64  `json:"timeEstimateSeconds"`
	PriceImpactPercent *float64 `json:"priceImpactPercent"`
	GasFeeUSD          float64  `json:"gasFeeUsd"`
	ProtocolFee        float64  `json:"protocolFee"`
}

func printQuotesJSON(snap aggregator.Snapshot) {
	out := make([]quoteJSON, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		nq := q.Normalized
		item := quoteJSON{
			Provider:        q.Provider(),
			NetOutputAmount: aggregator.NetOutput(nq).String(),
			FormattedOutput: nq.FormattedOutputAmount,
			OutputUSD:       finite(nq.OutputUSD),
			TimeEstimate:    finite(nq.TimeEstimateSeconds),
			GasFeeUSD:       finite(nq.GasFeeUSD),
			ProtocolFee:     finite(nq.ProtocolFee),
		}
		if nq.OutputAmount != nil {
			item.OutputAmount = nq.OutputAmount.String()
		}
		if p := nq.PriceImpactPercent; !math.IsNaN(p) && !math.IsInf(p, 0) {
			item.PriceImpactPercent = &p
		}
		out = append(out, item)
	}
	jsonData, _ := json.MarshalIndent(map[string]any{
		"phase":  snap.Phase,
		"quotes": out,
	}, "", "  ")
	fmt.Println(string(jsonData))
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func displayQuotes(snap aggregator.Snapshot, req types.QuoteRequest) {
	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                   QUOTES")
	fmt.Println(strings.Repeat("=", 90))

	amountIn := types.FormatUnits(mustAmount(req), req.FromToken)
	fmt.Printf("\n  From:   %s %s on %s\n", amountIn, color.YellowString(req.FromToken.Symbol), req.FromChain)
	fmt.Printf("  To:     %s on %s\n", color.YellowString(req.ToToken.Symbol), req.ToChain)
	fmt.Printf("  Source: %s\n\n", snap.Phase)

	fmt.Printf("  %-3s %-14s %-22s %-12s %-12s %-10s %s\n", "#", "PROVIDER", "OUTPUT", "OUTPUT USD", "GAS USD", "IMPACT", "TIME")
	fmt.Println("  " + strings.Repeat("-", 86))
	for i, q := range snap.Quotes {
		nq := q.Normalized
		impact := "n/a"
		if !math.IsNaN(nq.PriceImpactPercent) {
			impact = fmt.Sprintf("%.2f%%", nq.PriceImpactPercent)
		}
		name := q.Provider()
		if i == 0 {
			name = color.GreenString("%-14s", name)
		} else {
			name = fmt.Sprintf("%-14s", name)
		}
		fmt.Printf("  %-3d %s %-22s %-12s %-12s %-10s %s\n",
			i+1,
			name,
			types.FormatUnits(aggregator.NetOutput(nq), req.ToToken),
			fmt.Sprintf("$%.2f", finite(nq.OutputUSD)),
			fmt.Sprintf("$%.2f", finite(nq.GasFeeUSD)),
			impact,
			formatDuration(nq.TimeEstimateSeconds))
	}

	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}

func mustAmount(req types.QuoteRequest) *big.Int {
	amount, err := req.AmountInt()
	if err != nil {
		return new(big.Int)
	}
	return amount
}

func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "-"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// quoteLabel is a one-line description of q for prompts
func quoteLabel(q provider.Quote, req types.QuoteRequest) string {
	return fmt.Sprintf("%s %s via %s", types.FormatUnits(aggregator.NetOutput(q.Normalized), req.ToToken), req.ToToken.Symbol, q.Provider())
}
