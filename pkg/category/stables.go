package category

import (
	"strings"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Stable coins on Solana, keyed by mint
var solanaStables = map[string]bool{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
	"2b1kV6DkPAnxd5ixfnxCpjxmKwqjjaYmCZfHsFu24GXo": true, // PYUSD
	"USDSwr9ApdHk5bvJKMjzff41FfuX8bSxdKcR81vTwcA":  true, // USDS
}

// Stable coins on NEAR, keyed by asset id
var nearStables = map[string]bool{
	"17208628f84f5d6ad33f0da3bbbeb27ffcb398eac501a31bd6ad2011e36133a1": true, // USDC
	"usdt.tether-token.near":                                           true, // USDT
	"a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48.factory.bridge.near":     true, // USDC.e
	"dac17f958d2ee523a2206206994597c13d831ec7.factory.bridge.near":     true, // USDT.e
}

// Symbols treated as stable when no classification service is available
var stableSymbols = map[string]bool{
	"USDC": true, "USDT": true, "DAI": true, "USDC.E": true, "USDT.E": true,
	"BUSD": true, "FDUSD": true, "PYUSD": true, "USDS": true, "USDE": true,
	"FRAX": true, "LUSD": true, "TUSD": true, "USDT0": true, "USDBC": true,
}

// Symbols of large-cap assets
var commonSymbols = map[string]bool{
	"ETH": true, "WETH": true, "BTC": true, "WBTC": true, "CBBTC": true,
	"BNB": true, "WBNB": true, "POL": true, "MATIC": true, "WPOL": true,
	"AVAX": true, "WAVAX": true, "SOL": true, "WSOL": true, "NEAR": true,
	"WNEAR": true, "ARB": true, "OP": true, "LINK": true, "UNI": true,
}

// Native/wrapped equivalents; tokens in the same group form a canonical pair
var canonicalGroups = map[string]string{
	"ETH":    "eth",
	"WETH":   "eth",
	"BNB":    "bnb",
	"WBNB":   "bnb",
	"POL":    "pol",
	"MATIC":  "pol",
	"WPOL":   "pol",
	"WMATIC": "pol",
	"AVAX":   "avax",
	"WAVAX":  "avax",
}

// IsCanonicalPair reports whether in and out are native/wrapped equivalents
func IsCanonicalPair(in, out types.TokenRef) bool {
	if !in.Chain.IsEVM() || !out.Chain.IsEVM() {
		return false
	}
	gIn, ok := canonicalGroups[strings.ToUpper(in.Symbol)]
	if !ok {
		return false
	}
	gOut, ok := canonicalGroups[strings.ToUpper(out.Symbol)]
	return ok && gIn == gOut
}

// isNonEVMStable checks the chain-appropriate stable-coin list
func isNonEVMStable(token types.TokenRef) bool {
	switch token.Chain.Family() {
	case types.FamilySolana:
		return solanaStables[token.Address]
	case types.FamilyNear:
		return nearStables[strings.ToLower(token.Address)]
	default:
		return false
	}
}
