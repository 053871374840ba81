package types

import (
	"fmt"
	"regexp"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

var nearAccountPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// BitcoinParams selects the network Bitcoin addresses are validated against
var BitcoinParams = &chaincfg.MainNetParams

// ValidateAddress checks that address is well formed for chain
func ValidateAddress(chain ChainID, address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}

	switch chain.Family() {
	case FamilyEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid EVM address: %s", address)
		}
	case FamilySolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address: %w", err)
		}
	case FamilyBitcoin:
		if _, err := btcutil.DecodeAddress(address, BitcoinParams); err != nil {
			return fmt.Errorf("invalid Bitcoin address: %w", err)
		}
	case FamilyNear:
		if len(address) < 2 || len(address) > 64 || !nearAccountPattern.MatchString(address) {
			return fmt.Errorf("invalid NEAR account id: %s", address)
		}
	default:
		return fmt.Errorf("unknown chain family for %s", chain)
	}

	return nil
}

// Validate checks the request invariants: a non-negative integer amount,
// distinct chains or two distinct tokens on one EVM chain, and well-formed
// sender and recipient addresses.
func (r QuoteRequest) Validate() error {
	if r.FromChain.IsZero() || r.ToChain.IsZero() {
		return fmt.Errorf("source and destination chains are required")
	}
	if r.FromToken.Chain != r.FromChain || r.ToToken.Chain != r.ToChain {
		return fmt.Errorf("token chain does not match request chain")
	}
	if _, err := r.AmountInt(); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	if r.FromChain == r.ToChain {
		if !r.FromChain.IsEVM() {
			return fmt.Errorf("same-chain swaps are only supported on EVM chains")
		}
		if r.FromToken.Same(r.ToToken) {
			return fmt.Errorf("source and destination tokens are the same")
		}
	}

	if r.SlippageBps > 10000 {
		return fmt.Errorf("slippage must be at most 10000 bps")
	}

	if err := ValidateAddress(r.FromChain, r.Sender); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if err := ValidateAddress(r.ToChain, r.Recipient); err != nil {
		return fmt.Errorf("recipient: %w", err)
	}

	return nil
}
