// Package aggregator collects quotes for a swap from every compatible
// provider and publishes them as a continuously re-ranked list.
//
// A round first tries the aggregator's quote stream. When the stream fails
// or yields nothing, every compatible adapter is asked directly, in parallel,
// each under its own hard timeout. Same-chain EVM swaps skip both and go to a
// single designated adapter.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/category"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Default timings
const (
	DefaultSoftTimeout    = 4 * time.Second
	DefaultAdapterTimeout = 9 * time.Second
	DefaultStreamTimeout  = 30 * time.Second

	DefaultSameChainAdapter = "kyberswap"
)

// Options configures an Orchestrator
type Options struct {
	Registry   *provider.Registry
	Classifier *category.Classifier

	// StreamURL is the quote stream endpoint; empty disables the stream phase.
	StreamURL  string
	HTTPClient *http.Client

	SoftTimeout    time.Duration
	AdapterTimeout time.Duration
	StreamTimeout  time.Duration

	SameChainAdapter string

	Logger  *log.Logger
	Metrics *Metrics
}

// Preferences are the caller's source filters
type Preferences struct {
	Excluded []string `json:"excludedSources,omitempty"`
	Included []string `json:"includedSources,omitempty"`
	// ForceExclusions applies the filters even when they leave no provider.
	ForceExclusions bool `json:"forceExclusions,omitempty"`
}

func (p Preferences) empty() bool {
	return len(p.Excluded) == 0 && len(p.Included) == 0
}

// Orchestrator runs at most one aggregation round at a time. Starting a new
// round cancels the previous one and waits for it to wind down first.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	current *Round
	nextID  uint64
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Classifier == nil {
		opts.Classifier = category.NewClassifier(nil, opts.Logger)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.SoftTimeout <= 0 {
		opts.SoftTimeout = DefaultSoftTimeout
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = DefaultAdapterTimeout
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = DefaultStreamTimeout
	}
	if opts.SameChainAdapter == "" {
		opts.SameChainAdapter = DefaultSameChainAdapter
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	return &Orchestrator{opts: opts}, nil
}

// Start begins a new round for req, superseding any round still running.
// The returned Round publishes ranked snapshots until it completes.
func (o *Orchestrator) Start(ctx context.Context, req types.QuoteRequest, prefs Preferences) *Round {
	o.mu.Lock()
	defer o.mu.Unlock()

	if prev := o.current; prev != nil {
		prev.Cancel()
		<-prev.done
	}

	o.nextID++
	roundCtx, cancel := context.WithCancel(ctx)
	r := newRound(o.nextID, cancel)
	o.current = r

	go o.run(roundCtx, r, req, prefs)

	return r
}

// Close cancels the active round and waits for it
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		o.current.Cancel()
		<-o.current.done
		o.current = nil
	}
}

func (o *Orchestrator) run(ctx context.Context, r *Round, req types.QuoteRequest, prefs Preferences) {
	started := time.Now()

	result := o.opts.Classifier.Classify(ctx, req.FromToken, req.ToToken)
	req.FeeBps = result.FeeBps
	req.Category = result.Category
	r.request = req

	st := newRoundState(ctx, r)
	path := "cross_chain"

	var err error
	if req.SameChainEVM() {
		path = "same_chain"
		err = o.sameChain(ctx, st, req)
	} else {
		err = o.crossChain(ctx, st, req, prefs)
	}

	outcome := "success"
	switch {
	case ctx.Err() != nil:
		outcome = "cancelled"
		err = ctx.Err()
		o.logf("round %d cancelled", r.ID)
	case err != nil:
		outcome = "failed"
		o.logf("round %d failed: %v", r.ID, err)
	default:
		o.logf("round %d finished with %d quotes in %s", r.ID, st.count(), time.Since(started).Round(time.Millisecond))
	}
	o.opts.Metrics.round(path, outcome, time.Since(started))

	st.finish(err)
}

func (o *Orchestrator) sameChain(ctx context.Context, st *roundState, req types.QuoteRequest) error {
	st.setPhase(PhaseSameChain)

	name := o.opts.SameChainAdapter
	adapter, ok := o.opts.Registry.Get(name)
	if !ok {
		return &provider.RoundFailure{
			Reason: provider.ErrNoValidQuotes,
			Errs:   map[string]error{name: fmt.Errorf("same-chain adapter not registered: %w", provider.ErrUnsupportedChain)},
		}
	}

	if err := compatible(adapter, req); err != nil {
		return &provider.RoundFailure{Reason: provider.ErrNoValidQuotes, Errs: map[string]error{adapter.Name(): err}}
	}

	quote, err := o.callAdapter(ctx, adapter, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.opts.Metrics.failure(adapter.Name(), provider.Reason(err))
		return &provider.RoundFailure{Reason: provider.ErrNoValidQuotes, Errs: map[string]error{adapter.Name(): err}}
	}

	o.opts.Metrics.quote(adapter.Name(), PhaseSameChain)
	st.markUsable()
	st.add(provider.Quote{Normalized: *quote, Adapter: adapter})
	return nil
}

func (o *Orchestrator) crossChain(ctx context.Context, st *roundState, req types.QuoteRequest, prefs Preferences) error {
	candidates, applied := o.candidates(req, prefs)
	if len(candidates) == 0 {
		return &provider.RoundFailure{Reason: provider.ErrNoValidQuotes}
	}

	err := o.stream(ctx, st, req, candidates, applied)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.logf("round %d: stream phase failed, falling back to %d adapters: %v", st.round.ID, len(candidates), err)
	return o.fallback(ctx, st, req, candidates)
}

// candidates returns the adapters eligible for req, and the preferences that
// were actually applied. Filters that would leave nothing are dropped unless
// forced.
func (o *Orchestrator) candidates(req types.QuoteRequest, prefs Preferences) ([]provider.Adapter, Preferences) {
	var eligible []provider.Adapter
	for _, a := range o.opts.Registry.All() {
		if compatible(a, req) == nil {
			eligible = append(eligible, a)
		}
	}

	if prefs.empty() {
		return eligible, prefs
	}

	included := nameSet(prefs.Included)
	excluded := nameSet(prefs.Excluded)

	var filtered []provider.Adapter
	for _, a := range eligible {
		key := strings.ToLower(a.Name())
		if len(included) > 0 && !included[key] {
			continue
		}
		if excluded[key] {
			continue
		}
		filtered = append(filtered, a)
	}

	if len(filtered) == 0 && len(eligible) > 0 && !prefs.ForceExclusions {
		o.logf("source filters would exclude every provider, ignoring them")
		return eligible, Preferences{}
	}

	return filtered, prefs
}

// compatible checks chain and category support without any network call
func compatible(a provider.Adapter, req types.QuoteRequest) error {
	if !provider.SupportsRequest(a, req) {
		return fmt.Errorf("%s: %s -> %s: %w", a.Name(), req.FromChain, req.ToChain, provider.ErrUnsupportedChain)
	}
	if !a.CanSupport(req.Category, req.FromToken, req.ToToken) {
		return fmt.Errorf("%s: %s: %w", a.Name(), req.Category, provider.ErrUnsupportedCategory)
	}
	return nil
}

func nameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = true
		}
	}
	return set
}

func (o *Orchestrator) logf(format string, args ...any) {
	o.opts.Logger.Printf(format, args...)
}

var errEmptyStream = errors.New("stream ended without quotes")
