// Package stub provides a configurable in-memory Adapter for tests.
package stub

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Adapter implements provider.Adapter for testing.
type Adapter struct {
	provider.Base

	// Output is returned as the quote's OutputAmount when QuoteErr is nil.
	Output      int64
	ProtocolFee float64
	QuoteErr    error
	// Delay is applied before GetQuote answers. It ignores ctx on purpose so
	// callers can test that late results are discarded.
	Delay time.Duration

	Refuse   map[types.Category]bool
	Aux      []types.ChainFamily
	ExecErr  error
	// NilResult makes ExecuteSwap answer (nil, nil).
	NilResult bool
	Statuses  []StatusResult

	quoteCalls  atomic.Int32
	statusCalls atomic.Int32

	mu       sync.Mutex
	executed []provider.Quote
	wallets  []types.Wallet
}

// StatusResult is one scripted answer of GetTransactionStatus.
type StatusResult struct {
	Status types.SwapState
	Hash   string
	Err    error
	// Empty answers (nil, nil).
	Empty bool
}

// New creates a stub adapter supporting the given chains.
func New(name string, output int64, chains ...types.ChainID) *Adapter {
	return &Adapter{
		Base: provider.Base{
			ProviderName: name,
			IconURL:      "https://example.com/" + name + ".svg",
			Chains:       chains,
		},
		Output: output,
	}
}

// CanSupport refuses the categories listed in Refuse.
func (a *Adapter) CanSupport(category types.Category, _, _ types.TokenRef) bool {
	return !a.Refuse[category]
}

// GetQuote returns the scripted quote after Delay.
func (a *Adapter) GetQuote(_ context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	a.quoteCalls.Add(1)
	if a.Delay > 0 {
		time.Sleep(a.Delay)
	}
	if a.QuoteErr != nil {
		return nil, a.QuoteErr
	}
	return &types.NormalizedQuote{
		OutputAmount:          big.NewInt(a.Output),
		FormattedOutputAmount: types.FormatUnits(big.NewInt(a.Output), req.ToToken),
		ProtocolFee:           a.ProtocolFee,
		RawQuote:              a.ProviderName,
		Request:               req,
	}, nil
}

// ExecuteSwap records the call and returns a TxResult with a fixed hash.
func (a *Adapter) ExecuteSwap(_ context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	a.mu.Lock()
	a.executed = append(a.executed, quote)
	a.wallets = append(a.wallets, wallet)
	a.mu.Unlock()

	if a.ExecErr != nil {
		return nil, a.ExecErr
	}
	if a.NilResult {
		return nil, nil
	}

	req := quote.Normalized.Request
	return &types.TxResult{
		SourceTxHash: "0x" + a.ProviderName,
		SourceChain:  req.FromChain,
		TargetChain:  req.ToChain,
		InputAmount:  req.Amount,
		OutputAmount: quote.Normalized.OutputAmount.String(),
		SourceToken:  req.FromToken,
		TargetToken:  req.ToToken,
	}, nil
}

// AuxWallets implements provider.AuxWallets.
func (a *Adapter) AuxWallets(provider.Quote) []types.ChainFamily {
	return a.Aux
}

// GetTransactionStatus replays Statuses in order, repeating the last one.
func (a *Adapter) GetTransactionStatus(_ context.Context, tx types.TxResult) (*types.SwapStatus, error) {
	n := int(a.statusCalls.Add(1)) - 1
	if len(a.Statuses) == 0 {
		return &types.SwapStatus{TxHash: tx.TargetTxHash, Status: types.StatusProcessing}, nil
	}
	if n >= len(a.Statuses) {
		n = len(a.Statuses) - 1
	}
	r := a.Statuses[n]
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Empty {
		return nil, nil
	}
	return &types.SwapStatus{TxHash: r.Hash, Status: r.Status}, nil
}

// QuoteCalls returns how many times GetQuote ran.
func (a *Adapter) QuoteCalls() int {
	return int(a.quoteCalls.Load())
}

// StatusCalls returns how many times GetTransactionStatus ran.
func (a *Adapter) StatusCalls() int {
	return int(a.statusCalls.Load())
}

// Wallets returns the wallet handles ExecuteSwap received.
func (a *Adapter) Wallets() []types.Wallet {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Wallet, len(a.wallets))
	copy(out, a.wallets)
	return out
}

var _ provider.Adapter = (*Adapter)(nil)
var _ provider.AuxWallets = (*Adapter)(nil)
