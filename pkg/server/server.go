// Package server exposes the aggregator over HTTP: a WebSocket feed of ranked
// quote snapshots, the provider list, health and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/aggregator"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Options configures the server
type Options struct {
	Addr     string
	Registry *provider.Registry
	// Aggregator is the template for the orchestrator each connection owns.
	Aggregator aggregator.Options
	// DefaultSlippageBps applies to requests that leave slippage unset.
	DefaultSlippageBps uint32
	Gatherer           prometheus.Gatherer
	Logger             *log.Logger
}

// Server provides the HTTP API
type Server struct {
	opts     Options
	router   *mux.Router
	http     *http.Server
	upgrader websocket.Upgrader
}

// New creates the server and its routes
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Aggregator.Registry == nil {
		opts.Aggregator.Registry = opts.Registry
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()

	r.HandleFunc("/api/v1/providers", s.handleProviders).Methods("GET")
	r.HandleFunc("/api/v1/quotes/ws", s.handleQuotes).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router = r
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.opts.Logger.Printf("listening on %s", s.opts.Addr)
	return s.http.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type providerView struct {
	Name   string   `json:"name"`
	Icon   string   `json:"icon"`
	Chains []string `json:"chains"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	adapters := s.opts.Registry.All()
	out := make([]providerView, 0, len(adapters))
	for _, a := range adapters {
		chains := a.SupportedChains()
		names := make([]string, len(chains))
		for i, c := range chains {
			names[i] = c.String()
		}
		out = append(out, providerView{Name: a.Name(), Icon: a.Icon(), Chains: names})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "kyberswap-xchain",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
