package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/client"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the tokens quotes can be requested for",
	Long: `List the tokens the quote and swap commands resolve by symbol,
grouped by chain.

Examples:
  kyberswap-xchain list-tokens
  kyberswap-xchain list-tokens --chain solana
  kyberswap-xchain list-tokens --chain 42161 --symbol USDC`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Only this chain (alias, family or EVM chain id)")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Only symbols containing this text")
}

// listedToken is one resolvable token with its 1Click price
type listedToken struct {
	types.TokenRef
	AssetID  string  `json:"assetId"`
	PriceUSD float64 `json:"priceUsd"`
}

// tokenFilter selects entries of the 1Click token list
type tokenFilter struct {
	chain  types.ChainID
	symbol string
}

func (f tokenFilter) match(t listedToken) bool {
	if !f.chain.IsZero() && t.Chain != f.chain {
		return false
	}
	return f.symbol == "" || strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(f.symbol))
}

// listTokens maps the token list onto chains and applies f. Entries on
// blockchains without a chain mapping cannot be quoted and are counted in
// skipped instead.
func listTokens(tokens []oneclick.TokenResponse, f tokenFilter) (listed []listedToken, skipped int) {
	for _, token := range tokens {
		chain, ok := client.ChainFromBlockchain(token.GetBlockchain())
		if !ok {
			if f.chain.IsZero() {
				skipped++
			}
			continue
		}
		t := listedToken{
			TokenRef: client.ToTokenRef(token, chain),
			AssetID:  token.GetAssetId(),
			PriceUSD: float64(token.GetPrice()),
		}
		if f.match(t) {
			listed = append(listed, t)
		}
	}

	sort.SliceStable(listed, func(i, j int) bool {
		a, b := listed[i], listed[j]
		if a.Chain != b.Chain {
			return chainLabel(a.Chain) < chainLabel(b.Chain)
		}
		return a.Symbol < b.Symbol
	})
	return listed, skipped
}

func chainLabel(chain types.ChainID) string {
	if name, ok := client.Blockchain(chain); ok {
		return name
	}
	return chain.String()
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var f tokenFilter
	f.symbol = filterSymbol
	if filterChain != "" {
		if f.chain, err = types.ParseChainID(filterChain); err != nil {
			printError(err)
			os.Exit(1)
		}
		if _, ok := client.Blockchain(f.chain); !ok {
			printError(fmt.Errorf("no tokens are listed for chain %s", f.chain))
			os.Exit(1)
		}
	}

	apiClient := client.NewOneClickClient(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL, nil)
	ctx, cancel := commandContext(cfg.AdapterTimeout)
	defer cancel()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	tokens, err := apiClient.GetSupportedTokens(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	listed, skipped := listTokens(tokens, f)
	if jsonOutput {
		if listed == nil {
			listed = []listedToken{}
		}
		jsonData, _ := json.MarshalIndent(listed, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTokens(listed, skipped)
}

func displayTokens(tokens []listedToken, skipped int) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	chains := 0
	for i, t := range tokens {
		if i == 0 || t.Chain != tokens[i-1].Chain {
			chains++
			color.Cyan("\n%s (%s)", strings.ToUpper(chainLabel(t.Chain)), t.Chain)
			fmt.Println(strings.Repeat("-", 90))
		}

		address := t.Address
		if t.IsNative {
			address = "native"
		} else if len(address) > 40 {
			address = address[:37] + "..."
		}
		fmt.Printf("  %-10s  %2d decimals  %-40s  $%.4f\n",
			color.YellowString(t.Symbol),
			t.Decimals,
			color.HiBlackString(address),
			t.PriceUSD)
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains", len(tokens), chains)
	if skipped > 0 {
		fmt.Printf(" (%d listed on chains quotes cannot use)", skipped)
	}
	fmt.Print("\n\n")
}
