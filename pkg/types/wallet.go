package types

import (
	"context"
	"math/big"
)

// EVMTx is an unsigned EVM transaction prepared by a provider
type EVMTx struct {
	ChainID uint64
	To      string
	Data    []byte
	Value   *big.Int
	Gas     uint64 // 0 lets the signer estimate
}

// EVMSigner signs and submits EVM transactions for one account
type EVMSigner interface {
	Address() string
	SendTransaction(ctx context.Context, tx EVMTx) (string, error)
	Allowance(ctx context.Context, chainID uint64, token, spender string) (*big.Int, error)
	// Approve submits an ERC20 approval and waits for it to be mined.
	Approve(ctx context.Context, chainID uint64, token, spender string, amount *big.Int) (string, error)
	// Transfer sends the native coin when token is empty, an ERC20 otherwise.
	Transfer(ctx context.Context, chainID uint64, token, to string, amount *big.Int) (string, error)
}

// SolanaSender signs and submits Solana transactions for one account
type SolanaSender interface {
	Address() string
	// SendTransaction signs a serialized transaction prepared by a provider.
	SendTransaction(ctx context.Context, rawTx []byte) (string, error)
	// Transfer sends SOL when mint is empty, an SPL token otherwise.
	Transfer(ctx context.Context, to, mint string, amount *big.Int) (string, error)
}

// NearSigner signs and submits NEAR transactions for one account
type NearSigner interface {
	AccountID() string
	// Transfer sends NEAR when assetID is empty, a NEP-141 token otherwise.
	Transfer(ctx context.Context, to, assetID string, amount *big.Int) (string, error)
}

// BitcoinSigner spends from one Bitcoin wallet
type BitcoinSigner interface {
	Address() string
	SendToAddress(ctx context.Context, to string, sats *big.Int) (string, error)
}

// Wallet is the opaque per-family signer handle passed through to adapters.
// A nil member means that family is not connected.
type Wallet struct {
	EVM     EVMSigner
	Solana  SolanaSender
	Near    NearSigner
	Bitcoin BitcoinSigner
}

// Connected reports whether a signer for family is present
func (w *Wallet) Connected(family ChainFamily) bool {
	if w == nil {
		return false
	}
	switch family {
	case FamilyEVM:
		return w.EVM != nil
	case FamilySolana:
		return w.Solana != nil
	case FamilyNear:
		return w.Near != nil
	case FamilyBitcoin:
		return w.Bitcoin != nil
	default:
		return false
	}
}

// Address returns the connected account for family, or "" when absent
func (w *Wallet) Address(family ChainFamily) string {
	if !w.Connected(family) {
		return ""
	}
	switch family {
	case FamilyEVM:
		return w.EVM.Address()
	case FamilySolana:
		return w.Solana.Address()
	case FamilyNear:
		return w.Near.AccountID()
	case FamilyBitcoin:
		return w.Bitcoin.Address()
	}
	return ""
}

// Only returns a copy holding just the signers of the given families
func (w *Wallet) Only(families ...ChainFamily) Wallet {
	var out Wallet
	if w == nil {
		return out
	}
	for _, f := range families {
		switch f {
		case FamilyEVM:
			out.EVM = w.EVM
		case FamilySolana:
			out.Solana = w.Solana
		case FamilyNear:
			out.Near = w.Near
		case FamilyBitcoin:
			out.Bitcoin = w.Bitcoin
		}
	}
	return out
}
