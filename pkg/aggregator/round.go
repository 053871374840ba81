package aggregator

import (
	"context"
	"sync"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Phase is the stage a round is in
type Phase string

const (
	PhaseSameChain Phase = "same_chain"
	PhaseStream    Phase = "stream"
	PhaseFallback  Phase = "fallback"
)

// updatesBuffer bounds how many snapshots a slow reader can fall behind.
// Older snapshots are dropped first; the final one is always delivered.
const updatesBuffer = 32

// Snapshot is an immutable view of a round's ranked quotes
type Snapshot struct {
	Round  uint64           `json:"round"`
	Phase  Phase            `json:"phase"`
	Quotes []provider.Quote `json:"-"`
	// Usable reports whether the caller may proceed to execution.
	Usable bool `json:"usable"`
	// Done is set on the last snapshot of a round.
	Done bool  `json:"done"`
	Err  error `json:"-"`
}

// Best returns the top ranked quote
func (s Snapshot) Best() (provider.Quote, bool) {
	if len(s.Quotes) == 0 {
		return provider.Quote{}, false
	}
	return s.Quotes[0], true
}

// Round is one aggregation attempt
type Round struct {
	ID uint64

	updates chan Snapshot
	cancel  context.CancelFunc
	done    chan struct{}

	// written by the round goroutine before done is closed
	request types.QuoteRequest
	final   Snapshot
}

func newRound(id uint64, cancel context.CancelFunc) *Round {
	return &Round{
		ID:      id,
		updates: make(chan Snapshot, updatesBuffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Updates returns the snapshot feed. It is closed when the round ends.
func (r *Round) Updates() <-chan Snapshot {
	return r.updates
}

// Cancel aborts the round. Results arriving afterwards are discarded.
func (r *Round) Cancel() {
	r.cancel()
}

// Done is closed once the round has fully stopped
func (r *Round) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the round ends and returns its final snapshot
func (r *Round) Wait() (Snapshot, error) {
	<-r.done
	return r.final, r.final.Err
}

// Request returns the classified request of a finished round
func (r *Round) Request() types.QuoteRequest {
	<-r.done
	return r.request
}

// send delivers s without ever blocking the round. When the reader is
// behind, the oldest pending snapshot is dropped.
func (r *Round) send(s Snapshot) {
	for {
		select {
		case r.updates <- s:
			return
		default:
		}
		select {
		case <-r.updates:
		default:
		}
	}
}

// roundState is the running quote list of one round. Every mutation
// re-ranks and publishes a fresh copy.
type roundState struct {
	ctx   context.Context
	round *Round

	mu     sync.Mutex
	phase  Phase
	quotes []provider.Quote
	usable bool
	soft   bool
}

func newRoundState(ctx context.Context, r *Round) *roundState {
	return &roundState{ctx: ctx, round: r}
}

// setPhase switches phase and starts a fresh result list
func (s *roundState) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	s.quotes = nil
}

func (s *roundState) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}

// add merges q, replacing an earlier quote of the same provider
func (s *roundState) add(q provider.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]provider.Quote, 0, len(s.quotes)+1)
	for _, existing := range s.quotes {
		if existing.Provider() != q.Provider() {
			merged = append(merged, existing)
		}
	}
	merged = append(merged, q)
	s.quotes = Rank(merged)

	if s.soft {
		s.usable = true
	}
	s.publishLocked()
}

// softTimeout marks the round usable when it already has quotes. Quotes
// arriving later make it usable immediately.
func (s *roundState) softTimeout() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.soft = true
	if len(s.quotes) == 0 || s.usable {
		return false
	}
	s.usable = true
	s.publishLocked()
	return true
}

// markUsable makes every later snapshot usable
func (s *roundState) markUsable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.soft = true
}

func (s *roundState) publishLocked() {
	if s.ctx.Err() != nil {
		return
	}
	s.round.send(s.snapshotLocked(false, nil))
}

func (s *roundState) snapshotLocked(done bool, err error) Snapshot {
	quotes := make([]provider.Quote, len(s.quotes))
	copy(quotes, s.quotes)
	return Snapshot{
		Round:  s.round.ID,
		Phase:  s.phase,
		Quotes: quotes,
		Usable: s.usable && len(quotes) > 0,
		Done:   done,
		Err:    err,
	}
}

// finish publishes the final snapshot and closes the feed. A cancelled
// round publishes nothing more.
func (s *roundState) finish(err error) {
	s.mu.Lock()
	if err != nil {
		s.quotes = nil
	} else {
		s.usable = true
	}
	final := s.snapshotLocked(true, err)
	if s.ctx.Err() == nil {
		s.round.send(final)
	}
	s.mu.Unlock()

	s.round.final = final
	close(s.round.updates)
	close(s.round.done)
}
