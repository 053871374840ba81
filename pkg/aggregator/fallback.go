package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// fallback asks every candidate directly, once each, in parallel. A slow or
// failing adapter only loses its own slot; the round fails when none succeed.
func (o *Orchestrator) fallback(ctx context.Context, st *roundState, req types.QuoteRequest, candidates []provider.Adapter) error {
	st.setPhase(PhaseFallback)
	st.markUsable()

	var (
		mu   sync.Mutex
		errs = make(map[string]error)
	)

	var g errgroup.Group
	for _, adapter := range candidates {
		g.Go(func() error {
			quote, err := o.callAdapter(ctx, adapter, req)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				o.logf("round %d: %s quote failed: %v", st.round.ID, adapter.Name(), err)
				o.opts.Metrics.failure(adapter.Name(), provider.Reason(err))
				mu.Lock()
				errs[adapter.Name()] = err
				mu.Unlock()
				return nil
			}

			o.opts.Metrics.quote(adapter.Name(), PhaseFallback)
			st.add(provider.Quote{Normalized: *quote, Adapter: adapter})
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if st.count() == 0 {
		return &provider.RoundFailure{Reason: provider.ErrNoValidQuotes, Errs: errs}
	}
	return nil
}

type quoteResult struct {
	quote *types.NormalizedQuote
	err   error
}

// callAdapter races one GetQuote against its hard timeout and the round.
// A result arriving after either fired is dropped.
func (o *Orchestrator) callAdapter(ctx context.Context, adapter provider.Adapter, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan quoteResult, 1)
	go func() {
		q, err := adapter.GetQuote(callCtx, req)
		results <- quoteResult{quote: q, err: err}
	}()

	timer := time.NewTimer(o.opts.AdapterTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		if r.quote == nil || r.quote.OutputAmount == nil || r.quote.OutputAmount.Sign() < 0 {
			return nil, provider.Upstream(adapter.Name(), "quote", fmt.Errorf("invalid quote"))
		}
		q := *r.quote
		q.Request = req
		return &q, nil

	case <-timer.C:
		return nil, fmt.Errorf("%s after %s: %w", adapter.Name(), o.opts.AdapterTimeout, provider.ErrTimeout)

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
