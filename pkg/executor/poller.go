package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// refreshConcurrency bounds the status calls of one Refresh pass
const refreshConcurrency = 4

// Poller follows submitted swaps through GetTransactionStatus
type Poller struct {
	opts Options
}

// NewPoller creates a poller
func NewPoller(opts Options) (*Poller, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	opts.defaults()
	return &Poller{opts: opts}, nil
}

// Poll checks tx at every interval until it reaches a terminal status or ctx
// ends. Failed checks are logged and retried on the next tick. onUpdate, when
// set, receives each observed state.
func (p *Poller) Poll(ctx context.Context, tx types.TxResult, onUpdate func(types.TxResult)) (types.TxResult, error) {
	if tx.Status.IsTerminal() {
		return tx, nil
	}

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		if updated, err := p.Check(ctx, tx); err != nil {
			p.logf("status check for %s failed: %v", tx.ID, err)
		} else {
			tx = updated
			if onUpdate != nil {
				onUpdate(tx)
			}
			if tx.Status.IsTerminal() {
				return tx, nil
			}
		}

		select {
		case <-ctx.Done():
			return tx, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh performs one status check for every stored swap that has not
// settled and returns the records that were checked successfully.
func (p *Poller) Refresh(ctx context.Context) ([]types.TxResult, error) {
	if p.opts.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}

	pending := p.opts.Store.Pending()
	results := make([]*types.TxResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, tx := range pending {
		g.Go(func() error {
			updated, err := p.Check(gctx, tx)
			if err != nil {
				p.logf("status check for %s failed: %v", tx.ID, err)
				return nil
			}
			results[i] = &updated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]types.TxResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Check asks the swap's adapter for its status once and records the answer
func (p *Poller) Check(ctx context.Context, tx types.TxResult) (types.TxResult, error) {
	adapter, ok := p.opts.Registry.Get(tx.AdapterName)
	if !ok {
		return tx, fmt.Errorf("unknown adapter %q", tx.AdapterName)
	}

	status, err := adapter.GetTransactionStatus(ctx, tx)
	if err != nil {
		p.opts.Metrics.statusCheck(tx.AdapterName, "error")
		return tx, err
	}
	if status == nil {
		p.opts.Metrics.statusCheck(tx.AdapterName, "error")
		return tx, provider.Upstream(tx.AdapterName, "status", errors.New("empty status"))
	}
	p.opts.Metrics.statusCheck(tx.AdapterName, string(status.Status))

	tx.Apply(*status)

	if p.opts.Store != nil {
		stored, err := p.opts.Store.Update(tx.ID, func(rec *types.TxResult) {
			rec.Apply(*status)
		})
		if err != nil {
			p.logf("failed to update swap %s: %v", tx.ID, err)
		} else {
			tx = stored
		}
	}

	if tx.Status.IsTerminal() {
		p.logf("swap %s settled: %s", tx.ID, tx.Status)
	}
	return tx, nil
}

func (p *Poller) logf(format string, args ...any) {
	p.opts.Logger.Printf(format, args...)
}
