package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/adapters"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/aggregator"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/category"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/client"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/executor"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/history"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/parser"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/wallet"
)

const metricsNamespace = "xchain"

// runtime holds the components a command needs, built from configuration
type runtime struct {
	cfg      *config.Config
	logger   *log.Logger // server
	oneClick *client.OneClickClient
	registry *provider.Registry
	metrics  *prometheus.Registry

	aggOpts    aggregator.Options
	wallets    *wallet.Manager
	store      *history.Store
	execOpts   executor.Options
	dispatcher *executor.Dispatcher
	poller     *executor.Poller
}

// newRuntime wires everything from config. Component logs are discarded
// unless --verbose is set.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := func(component string) *log.Logger {
		if !verbose {
			return log.New(io.Discard, "", 0)
		}
		return log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
	}

	httpClient := &http.Client{Timeout: cfg.AdapterTimeout}
	oneClick := client.NewOneClickClient(cfg.OneClick.JWTToken, cfg.OneClick.BaseURL, httpClient)

	registry, err := provider.NewRegistry(
		adapters.NewKyberSwap(adapters.KyberSwapConfig{
			BaseURL:     cfg.KyberSwap.BaseURL,
			ClientID:    cfg.KyberSwap.ClientID,
			FeeReceiver: cfg.KyberSwap.FeeReceiver,
			RPC:         cfg.Wallet.EVM.RPC,
		}, adapters.WithTimeout(cfg.AdapterTimeout)),
		adapters.NewLiFi(adapters.LiFiConfig{
			BaseURL:    cfg.LiFi.BaseURL,
			Integrator: cfg.LiFi.Integrator,
			APIKey:     cfg.LiFi.APIKey,
		}, adapters.WithTimeout(cfg.AdapterTimeout)),
		adapters.NewDeBridge(adapters.DeBridgeConfig{
			BaseURL:           cfg.DeBridge.BaseURL,
			AffiliateReceiver: cfg.DeBridge.AffiliateReceiver,
			ReferralCode:      cfg.DeBridge.ReferralCode,
		}, adapters.WithTimeout(cfg.AdapterTimeout)),
		adapters.NewNearIntents(oneClick, adapters.NearIntentsConfig{
			Referral: cfg.OneClick.Referral,
		}),
	)
	if err != nil {
		return nil, err
	}

	var lookup category.Lookup
	if cfg.CategoryURL != "" {
		lookup = category.NewHTTPLookup(cfg.CategoryURL, nil)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	wallets, err := wallet.NewManager(cfg.Wallet)
	if err != nil {
		return nil, err
	}

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		wallets.Close()
		return nil, err
	}

	execOpts := executor.Options{
		Registry:     registry,
		Store:        store,
		PollInterval: cfg.PollInterval,
		Logger:       logger("executor"),
		Metrics:      executor.NewMetrics(metricsNamespace, metrics),
	}
	poller, err := executor.NewPoller(execOpts)
	if err != nil {
		wallets.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger("server"),
		oneClick: oneClick,
		registry: registry,
		metrics:  metrics,
		aggOpts: aggregator.Options{
			Registry:         registry,
			Classifier:       category.NewClassifier(lookup, logger("category")),
			StreamURL:        cfg.StreamURL,
			SoftTimeout:      cfg.SoftTimeout,
			AdapterTimeout:   cfg.AdapterTimeout,
			StreamTimeout:    cfg.StreamTimeout,
			SameChainAdapter: cfg.SameChainAdapter,
			Logger:           logger("aggregator"),
			Metrics:          aggregator.NewMetrics(metricsNamespace, metrics),
		},
		wallets:    wallets,
		store:      store,
		execOpts:   execOpts,
		dispatcher: executor.NewDispatcher(execOpts),
		poller:     poller,
	}, nil
}

func (rt *runtime) Close() {
	rt.wallets.Close()
}

// setPollInterval replaces the configured status polling interval
func (rt *runtime) setPollInterval(d time.Duration) error {
	opts := rt.execOpts
	opts.PollInterval = d
	poller, err := executor.NewPoller(opts)
	if err != nil {
		return err
	}
	rt.cfg.PollInterval = d
	rt.execOpts = opts
	rt.poller = poller
	return nil
}

// preferences returns the configured source filters
func (rt *runtime) preferences() aggregator.Preferences {
	return aggregator.Preferences{
		Excluded: rt.cfg.ExcludedSources,
		Included: rt.cfg.IncludedSources,
	}
}

// requestFlags are shared by quote and swap
type requestFlags struct {
	fromChain string
	toChain   string
	sender    string
	recipient string
	slippage  uint32
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fromChain, "from-chain", "", "Source chain when the command omits it (e.g. eth, arb, sol, btc, 8453)")
	cmd.Flags().StringVar(&f.toChain, "to-chain", "", "Destination chain when the command omits it")
	cmd.Flags().StringVar(&f.sender, "sender", "", "Sender address (defaults to the configured wallet)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Recipient address (defaults to the configured wallet)")
	cmd.Flags().Uint32Var(&f.slippage, "slippage", 0, "Slippage tolerance in basis points (defaults to config)")
}

// buildRequest parses args and resolves both tokens into a QuoteRequest
func (rt *runtime) buildRequest(ctx context.Context, args []string, flags requestFlags) (types.QuoteRequest, error) {
	swapCmd, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return types.QuoteRequest{}, err
	}

	if flags.fromChain != "" {
		if swapCmd.SourceChain, err = types.ParseChainID(flags.fromChain); err != nil {
			return types.QuoteRequest{}, err
		}
	}
	if flags.toChain != "" {
		if swapCmd.DestChain, err = types.ParseChainID(flags.toChain); err != nil {
			return types.QuoteRequest{}, err
		}
	}
	if err := swapCmd.Validate(); err != nil {
		return types.QuoteRequest{}, err
	}

	fromToken, fromPrice, err := rt.oneClick.ResolveToken(ctx, swapCmd.SourceToken, swapCmd.SourceChain)
	if err != nil {
		return types.QuoteRequest{}, fmt.Errorf("resolve %s: %w", swapCmd.SourceToken, err)
	}
	toToken, toPrice, err := rt.oneClick.ResolveToken(ctx, swapCmd.DestToken, swapCmd.DestChain)
	if err != nil {
		return types.QuoteRequest{}, fmt.Errorf("resolve %s: %w", swapCmd.DestToken, err)
	}

	w := rt.wallets.Wallet()
	req := types.QuoteRequest{
		FromChain:   swapCmd.SourceChain,
		ToChain:     swapCmd.DestChain,
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      fromToken.ToUnits(swapCmd.Amount).String(),
		Sender:      flags.sender,
		Recipient:   flags.recipient,
		SlippageBps: flags.slippage,
		TokenInUSD:  fromPrice,
		TokenOutUSD: toPrice,
		Wallet:      &w,
	}
	if req.Sender == "" {
		req.Sender = w.Address(req.FromChain.Family())
	}
	if req.Recipient == "" {
		req.Recipient = w.Address(req.ToChain.Family())
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = rt.cfg.SlippageBps
	}
	if req.FromChain.Family() == types.FamilySolana {
		req.PublicKey = req.Sender
	}

	if err := req.Validate(); err != nil {
		return types.QuoteRequest{}, err
	}
	return req, nil
}

// collect runs one round and calls onSnapshot for every snapshot it
// publishes, returning the final one.
func (rt *runtime) collect(ctx context.Context, req types.QuoteRequest, onSnapshot func(aggregator.Snapshot)) (aggregator.Snapshot, error) {
	orch, err := aggregator.New(rt.aggOpts)
	if err != nil {
		return aggregator.Snapshot{}, err
	}
	defer orch.Close()

	round := orch.Start(ctx, req, rt.preferences())
	for snap := range round.Updates() {
		if onSnapshot != nil {
			onSnapshot(snap)
		}
	}
	return round.Wait()
}

// commandContext is cancelled after timeout
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
