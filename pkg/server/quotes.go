package server

import (
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/aggregator"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const (
	msgSnapshot = "snapshot"
	msgError    = "error"
)

// quoteMessage is what clients send; every message starts a new round
type quoteMessage struct {
	Request     types.QuoteRequest     `json:"request"`
	Preferences aggregator.Preferences `json:"preferences"`
}

// outbound is pushed to clients
type outbound struct {
	Type   string           `json:"type"`
	Round  uint64           `json:"round,omitempty"`
	Phase  aggregator.Phase `json:"phase,omitempty"`
	Usable bool             `json:"usable"`
	Done   bool             `json:"done"`
	Quotes []quoteView      `json:"quotes"`
	Error  string           `json:"error,omitempty"`
}

type quoteView struct {
	Provider              string   `json:"provider"`
	Icon                  string   `json:"icon"`
	OutputAmount          string   `json:"outputAmount"`
	NetOutputAmount       string   `json:"netOutputAmount"`
	FormattedOutputAmount string   `json:"formattedOutputAmount"`
	InputUSD              float64  `json:"inputUsd"`
	OutputUSD             float64  `json:"outputUsd"`
	Rate                  float64  `json:"rate"`
	TimeEstimateSeconds   float64  `json:"timeEstimateSeconds"`
	PriceImpactPercent    *float64 `json:"priceImpactPercent"`
	GasFeeUSD             float64  `json:"gasFeeUsd"`
	ProtocolFee           float64  `json:"protocolFee"`
	ProtocolFeeDisplay    string   `json:"protocolFeeDisplay,omitempty"`
	PlatformFeePercent    float64  `json:"platformFeePercent"`
	ContractAddress       string   `json:"contractAddress"`
}

func viewOf(q provider.Quote) quoteView {
	nq := q.Normalized
	v := quoteView{
		Provider:              q.Provider(),
		NetOutputAmount:       aggregator.NetOutput(nq).String(),
		FormattedOutputAmount: nq.FormattedOutputAmount,
		InputUSD:              finite(nq.InputUSD),
		OutputUSD:             finite(nq.OutputUSD),
		Rate:                  finite(nq.Rate),
		TimeEstimateSeconds:   finite(nq.TimeEstimateSeconds),
		GasFeeUSD:             finite(nq.GasFeeUSD),
		ProtocolFee:           finite(nq.ProtocolFee),
		ProtocolFeeDisplay:    nq.ProtocolFeeDisplay,
		PlatformFeePercent:    finite(nq.PlatformFeePercent),
		ContractAddress:       nq.ContractAddress,
	}
	if q.Adapter != nil {
		v.Icon = q.Adapter.Icon()
	}
	if nq.OutputAmount != nil {
		v.OutputAmount = nq.OutputAmount.String()
	}
	if p := nq.PriceImpactPercent; !math.IsNaN(p) && !math.IsInf(p, 0) {
		v.PriceImpactPercent = &p
	}
	return v
}

// finite maps NaN and Inf to 0 since JSON cannot carry them
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func snapshotMessage(s aggregator.Snapshot) outbound {
	msg := outbound{
		Type:   msgSnapshot,
		Round:  s.Round,
		Phase:  s.Phase,
		Usable: s.Usable,
		Done:   s.Done,
		Quotes: make([]quoteView, 0, len(s.Quotes)),
	}
	for _, q := range s.Quotes {
		msg.Quotes = append(msg.Quotes, viewOf(q))
	}
	if s.Err != nil {
		msg.Error = s.Err.Error()
	}
	return msg
}

// conn serializes writes to one WebSocket
type conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	gate roundGate
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(v)
}

func (c *conn) writeLocked(v any) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// forward writes snap unless its round was superseded. The check runs
// under the write lock, so nothing from an older round follows the first
// write of a newer one.
func (c *conn) forward(snap aggregator.Snapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gate.admits(snap.Round) {
		return false, nil
	}
	return true, c.writeLocked(snapshotMessage(snap))
}

// roundGate admits snapshots of the newest round only. Between shut and
// open no round is admitted, so a superseded round cannot write while its
// successor starts.
type roundGate struct {
	current atomic.Uint64
}

func (g *roundGate) shut()          { g.current.Store(0) }
func (g *roundGate) open(id uint64) { g.current.Store(id) }

func (g *roundGate) admits(id uint64) bool {
	return id != 0 && g.current.Load() == id
}

// handleQuotes upgrades to a WebSocket and owns one orchestrator per
// connection. A new request message cancels the round in flight.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxMessageSize)

	orch, err := aggregator.New(s.opts.Aggregator)
	if err != nil {
		s.opts.Logger.Printf("failed to create orchestrator: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &conn{ws: ws}
	var wg sync.WaitGroup

	for {
		var msg quoteMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.opts.Logger.Printf("websocket read failed: %v", err)
			}
			break
		}

		req := msg.Request
		if req.SlippageBps == 0 {
			req.SlippageBps = s.opts.DefaultSlippageBps
		}
		if err := req.Validate(); err != nil {
			_ = c.write(outbound{Type: msgError, Quotes: []quoteView{}, Error: err.Error()})
			continue
		}

		c.gate.shut()
		round := orch.Start(ctx, req, msg.Preferences)
		c.gate.open(round.ID)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range round.Updates() {
				// Snapshots buffered before a restart belong to a stale round
				if _, err := c.forward(snap); err != nil {
					s.opts.Logger.Printf("websocket write failed: %v", err)
					round.Cancel()
				}
			}
		}()
	}

	cancel()
	orch.Close()
	wg.Wait()
}
