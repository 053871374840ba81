package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// SwapCommand is a parsed "swap <amount> <token> [on <chain>] to <token> [on <chain>]"
type SwapCommand struct {
	Amount      decimal.Decimal
	SourceToken string
	SourceChain types.ChainID
	DestToken   string
	DestChain   types.ChainID
}

// Pattern: <amount> <token> [ON <chain>] TO <token> [ON <chain>]
// Matches: "1 SOL TO USDC ON ARB", "1.5 USDC ON ETH TO USDC ON BASE", "100 USDC@ETH TO ETH@ARB"
var swapPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+([A-Z0-9.]+)(?:(?:\s+ON\s+|@)([A-Z0-9]+))?\s+TO\s+([A-Z0-9.]+)(?:(?:\s+ON\s+|@)([A-Z0-9]+))?$`)

// Native coins whose chain is implied by the symbol
var nativeChains = map[string]types.ChainID{
	"BTC":  types.Bitcoin,
	"SOL":  types.Solana,
	"NEAR": types.Near,
	"ETH":  types.Ethereum,
}

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC on arb"
//   - "1.5 USDC on eth to USDC on base"
//   - "100 USDC@eth to ETH@arb"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> [on <chain>] to <token> [on <chain>]' (e.g., 'swap 1 SOL to USDC on arb')")
	}

	amount, err := decimal.NewFromString(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", matches[1], err)
	}

	cmd := &SwapCommand{
		Amount:      amount,
		SourceToken: NormalizeTokenSymbol(matches[2]),
		DestToken:   NormalizeTokenSymbol(matches[4]),
	}

	if cmd.SourceChain, err = chainFor(matches[3], cmd.SourceToken); err != nil {
		return nil, err
	}
	if cmd.DestChain, err = chainFor(matches[5], cmd.DestToken); err != nil {
		return nil, err
	}

	return cmd, nil
}

func chainFor(name, symbol string) (types.ChainID, error) {
	if name != "" {
		return types.ParseChainID(name)
	}
	return nativeChains[symbol], nil
}

// Validate checks that the command is complete. Flags may fill chains the
// command text left out, so this runs after they are applied.
func (c *SwapCommand) Validate() error {
	if !c.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if c.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if c.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if c.SourceChain.IsZero() {
		return fmt.Errorf("source chain is required for %s (use 'on <chain>' or --from-chain)", c.SourceToken)
	}
	if c.DestChain.IsZero() {
		return fmt.Errorf("destination chain is required for %s (use 'on <chain>' or --to-chain)", c.DestToken)
	}
	if c.SourceChain == c.DestChain && c.SourceToken == c.DestToken {
		return fmt.Errorf("source and destination are the same token")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"USDC.E": "USDC",
		"XBT":    "BTC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
