package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quotes over WebSocket",
	Long: `Start the HTTP server.

Routes:
  GET /api/v1/quotes/ws   WebSocket feed of ranked quote snapshots
  GET /api/v1/providers   configured providers and their chains
  GET /metrics            Prometheus metrics
  GET /health             liveness`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to config server.addr)")
}

func runServe(cmd *cobra.Command, args []string) {
	rt, err := newRuntime(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer rt.Close()

	addr := rt.cfg.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv, err := server.New(server.Options{
		Addr:               addr,
		Registry:           rt.registry,
		Aggregator:         rt.aggOpts,
		DefaultSlippageBps: rt.cfg.SlippageBps,
		Gatherer:           rt.metrics,
		Logger:             rt.logger,
	})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	color.Green("\nServing quotes on %s", addr)
	fmt.Println("Press Ctrl+C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			printError(err)
			os.Exit(1)
		}
	case <-sig:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			printError(err)
			os.Exit(1)
		}
		printSuccess("Server stopped")
	}
}
