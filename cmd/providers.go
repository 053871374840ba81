package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List quote providers and connected wallets",
	Args:  cobra.NoArgs,
	Run:   runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	type providerInfo struct {
		Name   string   `json:"name"`
		Chains []string `json:"chains"`
	}

	adapters := rt.registry.All()
	infos := make([]providerInfo, 0, len(adapters))
	for _, a := range adapters {
		info := providerInfo{Name: a.Name()}
		for _, c := range a.SupportedChains() {
			info.Chains = append(info.Chains, c.String())
		}
		infos = append(infos, info)
	}

	w := rt.wallets.Wallet()

	if jsonOutput {
		wallets := map[types.ChainFamily]string{}
		for _, f := range rt.wallets.SupportedFamilies() {
			wallets[f] = w.Address(f)
		}
		jsonData, _ := json.MarshalIndent(map[string]any{
			"providers": infos,
			"wallets":   wallets,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        PROVIDERS")
	fmt.Println(strings.Repeat("=", 70))
	for _, info := range infos {
		marker := ""
		if info.Name == rt.cfg.SameChainAdapter {
			marker = color.HiBlackString(" (same-chain)")
		}
		fmt.Printf("\n  %s%s\n", color.YellowString(info.Name), marker)
		fmt.Printf("    %s\n", strings.Join(info.Chains, ", "))
	}

	color.Cyan("\nWALLETS")
	fmt.Println(strings.Repeat("-", 70))
	for _, f := range []types.ChainFamily{types.FamilyEVM, types.FamilySolana, types.FamilyNear, types.FamilyBitcoin} {
		if w.Connected(f) {
			fmt.Printf("  %-8s %s\n", f, color.GreenString(w.Address(f)))
		} else {
			fmt.Printf("  %-8s %s\n", f, color.HiBlackString("not connected"))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
