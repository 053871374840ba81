// Package executor submits a selected quote through its adapter and follows
// the resulting swap until it settles.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const DefaultPollInterval = 5 * time.Second

// Store persists submitted swaps
type Store interface {
	Save(tx types.TxResult) error
	Update(id string, fn func(tx *types.TxResult)) (types.TxResult, error)
	Pending() []types.TxResult
}

// Options configures the Dispatcher and the Poller
type Options struct {
	Registry *provider.Registry
	// Store is optional for the Dispatcher; the Poller needs it for Refresh.
	Store        Store
	PollInterval time.Duration

	Logger  *log.Logger
	Metrics *Metrics
	Now     func() time.Time
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Dispatcher hands a quote to the adapter that produced it
type Dispatcher struct {
	opts Options
}

// NewDispatcher creates a dispatcher
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	return &Dispatcher{opts: opts}
}

// Execute submits quote with the signers its adapter needs. Adapter errors
// are returned unchanged. The enriched record is saved to the store.
func (d *Dispatcher) Execute(ctx context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	adapter := quote.Adapter
	if adapter == nil {
		return nil, fmt.Errorf("quote has no adapter")
	}
	name := adapter.Name()
	req := quote.Normalized.Request

	family := req.FromChain.Family()
	if !wallet.Connected(family) {
		d.opts.Metrics.execution(name, "wallet")
		return nil, fmt.Errorf("%w: no %s signer", provider.ErrWalletNotConnected, family)
	}

	families := []types.ChainFamily{family}
	if aux, ok := adapter.(provider.AuxWallets); ok {
		families = append(families, aux.AuxWallets(quote)...)
	}

	d.logf("executing %s quote %s -> %s", name, req.FromChain, req.ToChain)
	result, err := adapter.ExecuteSwap(ctx, quote, wallet.Only(families...))
	if err != nil {
		d.opts.Metrics.execution(name, outcome(err))
		d.logf("%s execution failed: %v", name, err)
		return nil, err
	}
	if result == nil {
		d.opts.Metrics.execution(name, "error")
		d.logf("%s execution returned no result", name)
		return nil, fmt.Errorf("%s returned no transaction result", name)
	}

	d.enrich(result, quote)
	d.opts.Metrics.execution(name, "submitted")

	if d.opts.Store != nil {
		if err := d.opts.Store.Save(*result); err != nil {
			d.logf("failed to save swap %s: %v", result.ID, err)
		}
	}

	return result, nil
}

func (d *Dispatcher) enrich(tx *types.TxResult, quote provider.Quote) {
	nq := quote.Normalized
	req := nq.Request

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.AdapterName = quote.Adapter.Name()
	if tx.SourceChain.IsZero() {
		tx.SourceChain = req.FromChain
	}
	if tx.TargetChain.IsZero() {
		tx.TargetChain = req.ToChain
	}
	if tx.SourceToken.Chain.IsZero() {
		tx.SourceToken = req.FromToken
	}
	if tx.TargetToken.Chain.IsZero() {
		tx.TargetToken = req.ToToken
	}
	if tx.InputAmount == "" {
		tx.InputAmount = req.Amount
	}
	if tx.OutputAmount == "" && nq.OutputAmount != nil {
		tx.OutputAmount = nq.OutputAmount.String()
	}
	if tx.TimestampMs == 0 {
		tx.TimestampMs = d.opts.Now().UnixMilli()
	}

	tx.InputUSD = nq.InputUSD
	tx.OutputUSD = nq.OutputUSD
	tx.PlatformFeePercent = nq.PlatformFeePercent
	tx.Status = types.StatusProcessing
}

func (d *Dispatcher) logf(format string, args ...any) {
	d.opts.Logger.Printf(format, args...)
}

func outcome(err error) string {
	var submission *provider.SubmissionError
	switch {
	case errors.Is(err, provider.ErrUserRejected):
		return "rejected"
	case errors.Is(err, provider.ErrWalletNotConnected):
		return "wallet"
	case errors.As(err, &submission):
		return "submission"
	default:
		return provider.Reason(err)
	}
}
