package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Stream event types
const (
	EventInit          = "init"
	EventQuote         = "quote"
	EventProviderError = "provider_error"
	EventComplete      = "complete"
	EventError         = "error"
)

type sseEvent struct {
	Name string
	Data []byte
}

// eventParser turns a byte stream into events. The current event tag
// persists across lines until the next "event:" line, and every "data:"
// line is dispatched on its own.
type eventParser struct {
	buf   []byte
	event string
}

// Feed consumes chunk and returns the events completed by it
func (p *eventParser) Feed(chunk []byte) []sseEvent {
	p.buf = append(p.buf, chunk...)

	var events []sseEvent
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := p.buf[:i]
		p.buf = p.buf[i+1:]
		if ev, ok := p.line(line); ok {
			events = append(events, ev)
		}
	}

	// keep the partial line without holding on to consumed bytes
	if len(p.buf) == 0 {
		p.buf = nil
	} else {
		p.buf = append([]byte(nil), p.buf...)
	}

	return events
}

// Flush dispatches a trailing line that was never terminated
func (p *eventParser) Flush() []sseEvent {
	if len(p.buf) == 0 {
		return nil
	}
	line := p.buf
	p.buf = nil
	if ev, ok := p.line(line); ok {
		return []sseEvent{ev}
	}
	return nil
}

func (p *eventParser) line(raw []byte) (sseEvent, bool) {
	line := bytes.TrimSuffix(raw, []byte{'\r'})

	switch {
	case len(line) == 0, line[0] == ':':
		return sseEvent{}, false
	case bytes.HasPrefix(line, []byte("event:")):
		p.event = string(bytes.TrimSpace(line[len("event:"):]))
		return sseEvent{}, false
	case bytes.HasPrefix(line, []byte("data:")):
		data := bytes.TrimSpace(line[len("data:"):])
		return sseEvent{Name: p.event, Data: append([]byte(nil), data...)}, true
	default:
		return sseEvent{}, false
	}
}

// readEvents parses body into events until EOF or ctx ends
func readEvents(ctx context.Context, body io.Reader, out chan<- sseEvent) error {
	var parser eventParser
	chunk := make([]byte, 4096)

	emit := func(events []sseEvent) error {
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			if emitErr := emit(parser.Feed(chunk[:n])); emitErr != nil {
				return emitErr
			}
		}
		if errors.Is(err, io.EOF) {
			return emit(parser.Flush())
		}
		if err != nil {
			return err
		}
	}
}

// streamQuote is the payload of a quote event
type streamQuote struct {
	Provider              string          `json:"provider"`
	OutputAmount          json.Number     `json:"outputAmount"`
	FormattedOutputAmount string          `json:"formattedOutputAmount"`
	InputUSD              float64         `json:"inputUsd"`
	OutputUSD             float64         `json:"outputUsd"`
	Rate                  float64         `json:"rate"`
	TimeEstimate          float64         `json:"timeEstimate"`
	PriceImpact           *float64        `json:"priceImpact"`
	GasFeeUSD             float64         `json:"gasFeeUsd"`
	ContractAddress       string          `json:"contractAddress"`
	RawQuote              json.RawMessage `json:"rawQuote"`
	ProtocolFee           float64         `json:"protocolFee"`
	ProtocolFeeString     string          `json:"protocolFeeString"`
	PlatformFeePercent    float64         `json:"platformFeePercent"`
	QuoteParams           json.RawMessage `json:"quoteParams"`
}

func parseStreamQuote(data []byte) (*streamQuote, error) {
	if err := validateQuoteEvent(data); err != nil {
		return nil, err
	}
	var q streamQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	return &q, nil
}

func (q *streamQuote) normalized(req types.QuoteRequest) (types.NormalizedQuote, error) {
	out, ok := new(big.Int).SetString(q.OutputAmount.String(), 10)
	if !ok || out.Sign() < 0 {
		return types.NormalizedQuote{}, fmt.Errorf("invalid output amount '%s'", q.OutputAmount)
	}

	impact := math.NaN()
	if q.PriceImpact != nil {
		impact = *q.PriceImpact
	}

	formatted := q.FormattedOutputAmount
	if formatted == "" {
		formatted = types.FormatUnits(out, req.ToToken)
	}

	rate := q.Rate
	if rate == 0 {
		if in, err := req.AmountInt(); err == nil {
			rate = types.ComputeRate(in, out, req.FromToken, req.ToToken)
		}
	}

	var raw any
	if len(q.RawQuote) > 0 && string(q.RawQuote) != "null" {
		raw = q.RawQuote
	}

	return types.NormalizedQuote{
		OutputAmount:          out,
		FormattedOutputAmount: formatted,
		InputUSD:              q.InputUSD,
		OutputUSD:             q.OutputUSD,
		Rate:                  rate,
		TimeEstimateSeconds:   q.TimeEstimate,
		PriceImpactPercent:    impact,
		GasFeeUSD:             q.GasFeeUSD,
		ProtocolFee:           q.ProtocolFee,
		ProtocolFeeDisplay:    q.ProtocolFeeString,
		PlatformFeePercent:    q.PlatformFeePercent,
		ContractAddress:       q.ContractAddress,
		RawQuote:              raw,
		Request:               req,
	}, nil
}

// streamURL builds the stream request for req
func streamURL(base string, req types.QuoteRequest, prefs Preferences) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid stream url: %w", err)
	}

	q := u.Query()
	q.Set("fromChain", req.FromChain.String())
	q.Set("fromToken", req.FromToken.Address)
	q.Set("fromTokenDecimals", strconv.Itoa(int(req.FromToken.Decimals)))
	q.Set("fromAddress", req.Sender)
	q.Set("fromAmount", req.Amount)
	q.Set("toChain", req.ToChain.String())
	q.Set("toToken", req.ToToken.Address)
	q.Set("toTokenDecimals", strconv.Itoa(int(req.ToToken.Decimals)))
	q.Set("toAddress", req.Recipient)
	q.Set("fee", strconv.FormatUint(uint64(req.FeeBps), 10))
	q.Set("slippage", strconv.FormatUint(uint64(req.SlippageBps), 10))
	q.Set("fromTokenUsd", strconv.FormatFloat(req.TokenInUSD, 'f', -1, 64))
	q.Set("toTokenUsd", strconv.FormatFloat(req.TokenOutUSD, 'f', -1, 64))
	q.Set("includedSources", strings.Join(prefs.Included, ","))
	q.Set("excludedSources", strings.Join(prefs.Excluded, ","))
	q.Set("stream", "true")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// stream runs the streaming phase. It returns nil once at least one quote
// was accepted and the stream ended, and an error when the round should
// fall back.
func (o *Orchestrator) stream(ctx context.Context, st *roundState, req types.QuoteRequest, candidates []provider.Adapter, prefs Preferences) error {
	if o.opts.StreamURL == "" {
		return errors.New("quote stream not configured")
	}
	st.setPhase(PhaseStream)

	endpoint, err := streamURL(o.opts.StreamURL, req, prefs)
	if err != nil {
		return err
	}

	accept := make(map[string]provider.Adapter, len(candidates))
	for _, a := range candidates {
		accept[strings.ToLower(a.Name())] = a
	}

	soft := time.NewTimer(o.opts.SoftTimeout)
	defer soft.Stop()

	streamCtx, cancel := context.WithTimeout(ctx, o.opts.StreamTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := o.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	events := make(chan sseEvent)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readErr <- readEvents(streamCtx, resp.Body, events)
	}()
	defer func() {
		cancel()
		resp.Body.Close()
		wg.Wait()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stream returned status code %d", resp.StatusCode)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-soft.C:
			if st.softTimeout() {
				o.logf("round %d: soft timeout reached with %d quotes, round usable", st.round.ID, st.count())
			} else if st.count() == 0 {
				o.logf("round %d: soft timeout reached with no quotes yet", st.round.ID)
			}

		case ev := <-events:
			o.opts.Metrics.event(ev.Name)
			end, evErr := o.handleEvent(st, req, accept, ev)
			if !end {
				continue
			}
			if st.count() > 0 {
				return nil
			}
			if evErr != nil {
				return evErr
			}
			return errEmptyStream

		case err := <-readErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if st.count() > 0 {
				if err != nil {
					o.logf("round %d: stream ended early: %v", st.round.ID, err)
				}
				return nil
			}
			if errors.Is(streamCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("stream: %w", provider.ErrTimeout)
			}
			if err != nil {
				return fmt.Errorf("read stream: %w", err)
			}
			return errEmptyStream
		}
	}
}

// handleEvent processes one event and reports whether the stream is over
func (o *Orchestrator) handleEvent(st *roundState, req types.QuoteRequest, accept map[string]provider.Adapter, ev sseEvent) (bool, error) {
	switch ev.Name {
	case EventInit:
		var opened struct {
			RequestID string `json:"requestId"`
		}
		_ = json.Unmarshal(ev.Data, &opened)
		o.logf("round %d: stream opened, request %s", st.round.ID, opened.RequestID)

	case EventQuote:
		q, err := parseStreamQuote(ev.Data)
		if err != nil {
			o.logf("round %d: skipping malformed quote: %v", st.round.ID, err)
			return false, nil
		}

		adapter, ok := accept[strings.ToLower(q.Provider)]
		if !ok {
			if _, known := o.opts.Registry.Get(q.Provider); known {
				o.logf("round %d: dropping quote from filtered provider %s", st.round.ID, q.Provider)
			} else {
				o.logf("round %d: dropping quote from unknown provider %s", st.round.ID, q.Provider)
			}
			return false, nil
		}

		normalized, err := q.normalized(req)
		if err != nil {
			o.logf("round %d: skipping quote from %s: %v", st.round.ID, q.Provider, err)
			return false, nil
		}

		o.opts.Metrics.quote(adapter.Name(), PhaseStream)
		st.add(provider.Quote{Normalized: normalized, Adapter: adapter})

	case EventProviderError:
		var perr struct {
			Provider string `json:"provider"`
			Error    string `json:"error"`
		}
		_ = json.Unmarshal(ev.Data, &perr)
		o.logf("round %d: provider %s failed upstream: %s", st.round.ID, perr.Provider, perr.Error)
		o.opts.Metrics.failure(perr.Provider, "stream")

	case EventComplete:
		return true, nil

	case EventError:
		return true, fmt.Errorf("stream error: %s", ev.Data)

	default:
		o.logf("round %d: ignoring stream event '%s'", st.round.ID, ev.Name)
	}

	return false, nil
}
