// Package wallet implements the per-family signers behind types.Wallet.
package wallet

import (
	"fmt"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Manager owns the signers built from configuration
type Manager struct {
	evm     *EVMWallet
	solana  *SolanaWallet
	bitcoin *BitcoinWallet
}

// NewManager builds a signer for every configured family. Families without
// keys stay disconnected.
func NewManager(cfg config.WalletConfig) (*Manager, error) {
	m := &Manager{}

	if cfg.EVM.Enabled() {
		w, err := NewEVMWallet(cfg.EVM)
		if err != nil {
			return nil, fmt.Errorf("evm wallet: %w", err)
		}
		m.evm = w
	}

	if cfg.Solana.Enabled() {
		w, err := NewSolanaWallet(cfg.Solana)
		if err != nil {
			return nil, fmt.Errorf("solana wallet: %w", err)
		}
		m.solana = w
	}

	if cfg.Bitcoin.Enabled() {
		w, err := NewBitcoinWallet(cfg.Bitcoin)
		if err != nil {
			return nil, fmt.Errorf("bitcoin wallet: %w", err)
		}
		m.bitcoin = w
	}

	return m, nil
}

// Wallet returns the handle passed to adapters. Nil members stay nil
// interfaces so Connected reports them as absent.
func (m *Manager) Wallet() types.Wallet {
	var w types.Wallet
	if m.evm != nil {
		w.EVM = m.evm
	}
	if m.solana != nil {
		w.Solana = m.solana
	}
	if m.bitcoin != nil {
		w.Bitcoin = m.bitcoin
	}
	return w
}

// SupportedFamilies returns the chain families with a connected signer
func (m *Manager) SupportedFamilies() []types.ChainFamily {
	w := m.Wallet()
	supported := make([]types.ChainFamily, 0, 4)
	for _, f := range []types.ChainFamily{types.FamilyEVM, types.FamilySolana, types.FamilyNear, types.FamilyBitcoin} {
		if w.Connected(f) {
			supported = append(supported, f)
		}
	}
	return supported
}

// Close releases RPC connections
func (m *Manager) Close() {
	if m.bitcoin != nil {
		m.bitcoin.Close()
	}
}
