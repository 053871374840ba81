// Package provider defines the capability contract every bridge or aggregator
// integration implements, and the registry the orchestrator looks them up in.
package provider

import (
	"context"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Adapter is one integration with an external quoting and execution API.
// Implementations hold no state shared with other adapters.
type Adapter interface {
	Name() string
	Icon() string
	SupportedChains() []types.ChainID

	// CanSupport reports whether the provider accepts this fee category and
	// token pair. Refusal keeps the adapter out of a round entirely.
	CanSupport(category types.Category, tokenIn, tokenOut types.TokenRef) bool

	// GetQuote returns a quote without mutating req. It fails with ErrNoRoute,
	// ErrUnsupportedChain or an *UpstreamError.
	GetQuote(ctx context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error)

	// ExecuteSwap submits the transactions of a quote this adapter produced.
	// It fails with ErrWalletNotConnected, ErrUserRejected or a *SubmissionError.
	ExecuteSwap(ctx context.Context, quote Quote, wallet types.Wallet) (*types.TxResult, error)

	// GetTransactionStatus is idempotent and safe to poll.
	GetTransactionStatus(ctx context.Context, tx types.TxResult) (*types.SwapStatus, error)
}

// AuxWallets is implemented by adapters that need signer handles beyond the
// source chain's family during execution.
type AuxWallets interface {
	AuxWallets(quote Quote) []types.ChainFamily
}

// Quote pairs a normalized quote with the adapter that produced it. The
// adapter is owned by the Registry and must not be mutated.
type Quote struct {
	Normalized types.NormalizedQuote
	Adapter    Adapter
}

// Provider returns the producing adapter's name
func (q Quote) Provider() string {
	if q.Adapter == nil {
		return ""
	}
	return q.Adapter.Name()
}

// Base supplies static identity and the default capability answers.
// Concrete adapters embed it.
type Base struct {
	ProviderName string
	IconURL      string
	Chains       []types.ChainID
}

// Name implements Adapter
func (b Base) Name() string {
	return b.ProviderName
}

// Icon implements Adapter
func (b Base) Icon() string {
	return b.IconURL
}

// SupportedChains implements Adapter
func (b Base) SupportedChains() []types.ChainID {
	out := make([]types.ChainID, len(b.Chains))
	copy(out, b.Chains)
	return out
}

// CanSupport implements Adapter and accepts everything
func (b Base) CanSupport(types.Category, types.TokenRef, types.TokenRef) bool {
	return true
}

// Supports reports whether chain is in the adapter's chain set
func (b Base) Supports(chain types.ChainID) bool {
	for _, c := range b.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// CheckChains returns ErrUnsupportedChain unless both request chains are supported
func (b Base) CheckChains(req types.QuoteRequest) error {
	if !b.Supports(req.FromChain) || !b.Supports(req.ToChain) {
		return unsupported(b.ProviderName, req.FromChain, req.ToChain)
	}
	return nil
}

// SupportsRequest reports whether a supports both chains of req
func SupportsRequest(a Adapter, req types.QuoteRequest) bool {
	from, to := false, false
	for _, c := range a.SupportedChains() {
		if c == req.FromChain {
			from = true
		}
		if c == req.ToChain {
			to = true
		}
	}
	return from && to
}
