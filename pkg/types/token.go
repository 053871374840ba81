package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NativeEVMAddress is the placeholder address providers use for a chain's native coin
const NativeEVMAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// TokenRef describes a token on one chain. Address holds the EVM contract,
// the NEAR asset id, the Solana mint or the fixed BTC symbol.
type TokenRef struct {
	Chain    ChainID `json:"chain"`
	Address  string  `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
	IsNative bool    `json:"isNative"`
}

// Same reports whether t and other refer to the same token
func (t TokenRef) Same(other TokenRef) bool {
	if t.Chain != other.Chain {
		return false
	}
	if t.IsNative && other.IsNative {
		return true
	}
	if t.Chain.IsEVM() {
		return strings.EqualFold(t.Address, other.Address)
	}
	return t.Address == other.Address
}

// Key returns a stable lookup key for the token
func (t TokenRef) Key() string {
	addr := t.Address
	if t.Chain.IsEVM() {
		addr = strings.ToLower(addr)
	}
	return t.Chain.String() + ":" + addr
}

// ToUnits converts a human amount into the token's smallest unit
func (t TokenRef) ToUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(int32(t.Decimals)).Truncate(0)
}

// FromUnits converts an amount in the smallest unit into human units
func (t TokenRef) FromUnits(units decimal.Decimal) decimal.Decimal {
	return units.Shift(-int32(t.Decimals))
}
