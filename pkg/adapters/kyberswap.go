package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const (
	KyberSwapName           = "kyberswap"
	DefaultKyberSwapBaseURL = "https://aggregator-api.kyberswap.com"
	kyberSwapIcon           = "https://kyberswap.com/favicon.svg"
	kyberSwapSource         = "kyberswap-xchain"
)

// Route API error codes meaning there is nothing to quote
const (
	kyberCodeRouteNotFound = 4008
	kyberCodeTokenNotFound = 4011
)

var kyberChainSlugs = map[types.ChainID]string{
	types.Ethereum:  "ethereum",
	types.Optimism:  "optimism",
	types.BSC:       "bsc",
	types.Polygon:   "polygon",
	types.Base:      "base",
	types.Arbitrum:  "arbitrum",
	types.Avalanche: "avalanche",
}

// receiptReader is the part of ethclient the status check needs
type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// KyberSwapConfig configures the same-chain adapter
type KyberSwapConfig struct {
	BaseURL     string
	ClientID    string
	FeeReceiver string
	// RPC maps EVM chain ids to JSON-RPC endpoints for receipt lookups.
	RPC map[uint64]string
}

// KyberSwap quotes and executes swaps within one EVM chain through the
// KyberSwap aggregator.
type KyberSwap struct {
	provider.Base
	api *apiClient
	cfg KyberSwapConfig

	mu      sync.Mutex
	readers map[uint64]receiptReader
	dial    func(rawURL string) (receiptReader, error)
}

// NewKyberSwap creates the KyberSwap adapter
func NewKyberSwap(cfg KyberSwapConfig, opts ...ClientOption) *KyberSwap {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultKyberSwapBaseURL
	}

	chains := []types.ChainID{types.Ethereum, types.Optimism, types.BSC, types.Polygon, types.Base, types.Arbitrum, types.Avalanche}

	opts = append([]ClientOption{WithHeader("x-client-id", cfg.ClientID)}, opts...)
	return &KyberSwap{
		Base: provider.Base{
			ProviderName: KyberSwapName,
			IconURL:      kyberSwapIcon,
			Chains:       chains,
		},
		api:     newAPIClient(cfg.BaseURL, opts...),
		cfg:     cfg,
		readers: make(map[uint64]receiptReader),
		dial: func(rawURL string) (receiptReader, error) {
			return ethclient.Dial(rawURL)
		},
	}
}

type kyberEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type kyberRouteSummary struct {
	AmountIn     string `json:"amountIn"`
	AmountInUsd  string `json:"amountInUsd"`
	AmountOut    string `json:"amountOut"`
	AmountOutUsd string `json:"amountOutUsd"`
	GasUsd       string `json:"gasUsd"`
}

type kyberRoutes struct {
	RouteSummary  json.RawMessage `json:"routeSummary"`
	RouterAddress string          `json:"routerAddress"`
}

// kyberQuote is the raw quote replayed by ExecuteSwap
type kyberQuote struct {
	RouteSummary  json.RawMessage `json:"routeSummary"`
	RouterAddress string          `json:"routerAddress"`
}

type kyberBuild struct {
	Data             string `json:"data"`
	RouterAddress    string `json:"routerAddress"`
	TransactionValue string `json:"transactionValue"`
	Gas              string `json:"gas"`
}

// GetQuote implements provider.Adapter
func (k *KyberSwap) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	if !req.SameChainEVM() {
		return nil, fmt.Errorf("%s only swaps within one chain: %w", k.Name(), provider.ErrUnsupportedChain)
	}
	slug, ok := kyberChainSlugs[req.FromChain]
	if !ok {
		return nil, fmt.Errorf("%s: chain %s: %w", k.Name(), req.FromChain, provider.ErrUnsupportedChain)
	}

	query := url.Values{}
	query.Set("tokenIn", evmTokenAddress(req.FromToken))
	query.Set("tokenOut", evmTokenAddress(req.ToToken))
	query.Set("amountIn", req.Amount)
	query.Set("gasInclude", "true")
	if req.FeeBps > 0 && k.cfg.FeeReceiver != "" {
		query.Set("feeAmount", strconv.FormatUint(uint64(req.FeeBps), 10))
		query.Set("chargeFeeBy", "currency_out")
		query.Set("isInBps", "true")
		query.Set("feeReceiver", k.cfg.FeeReceiver)
	}

	var env kyberEnvelope
	if err := k.api.getJSON(ctx, "/"+slug+"/api/v1/routes", query, &env); err != nil {
		if noRoute(err) {
			return nil, fmt.Errorf("%s: %w", k.Name(), provider.ErrNoRoute)
		}
		return nil, upstream(k.Name(), "routes", err)
	}
	if env.Code != 0 {
		if env.Code == kyberCodeRouteNotFound || env.Code == kyberCodeTokenNotFound {
			return nil, fmt.Errorf("%s: %s: %w", k.Name(), env.Message, provider.ErrNoRoute)
		}
		return nil, upstream(k.Name(), "routes", fmt.Errorf("code %d: %s", env.Code, env.Message))
	}

	var routes kyberRoutes
	if err := json.Unmarshal(env.Data, &routes); err != nil {
		return nil, upstream(k.Name(), "routes", fmt.Errorf("decode data: %w", err))
	}
	var summary kyberRouteSummary
	if err := json.Unmarshal(routes.RouteSummary, &summary); err != nil {
		return nil, upstream(k.Name(), "routes", fmt.Errorf("decode route summary: %w", err))
	}

	amountOut, err := parseBig(summary.AmountOut)
	if err != nil {
		return nil, upstream(k.Name(), "routes", err)
	}
	if amountOut.Sign() == 0 {
		return nil, fmt.Errorf("%s: zero output: %w", k.Name(), provider.ErrNoRoute)
	}

	inUSD := parseFloat(summary.AmountInUsd)
	outUSD := parseFloat(summary.AmountOutUsd)
	q := &types.NormalizedQuote{
		OutputAmount:       amountOut,
		InputUSD:           inUSD,
		OutputUSD:          outUSD,
		PriceImpactPercent: priceImpact(inUSD, outUSD),
		GasFeeUSD:          parseFloat(summary.GasUsd),
		ContractAddress:    routes.RouterAddress,
		RawQuote: kyberQuote{
			RouteSummary:  routes.RouteSummary,
			RouterAddress: routes.RouterAddress,
		},
	}
	return finishQuote(q, req), nil
}

// noRoute reports whether a 4xx answer carries a route-not-found code
func noRoute(err error) bool {
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.Status >= 500 {
		return false
	}
	var env kyberEnvelope
	if json.Unmarshal([]byte(statusErr.Body), &env) != nil {
		return false
	}
	return env.Code == kyberCodeRouteNotFound || env.Code == kyberCodeTokenNotFound
}

// ExecuteSwap builds the route transaction and submits it after any approval
func (k *KyberSwap) ExecuteSwap(ctx context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	raw, err := decodeRaw[kyberQuote](k.Name(), quote)
	if err != nil {
		return nil, err
	}
	if wallet.EVM == nil {
		return nil, provider.ErrWalletNotConnected
	}

	req := quote.Normalized.Request
	slug := kyberChainSlugs[req.FromChain]

	payload := map[string]any{
		"routeSummary":      raw.RouteSummary,
		"sender":            wallet.EVM.Address(),
		"recipient":         req.Recipient,
		"slippageTolerance": req.SlippageBps,
		"source":            kyberSwapSource,
	}

	var env kyberEnvelope
	if err := k.api.postJSON(ctx, "/"+slug+"/api/v1/route/build", payload, &env); err != nil {
		return nil, provider.Submission(k.Name(), "build route", err)
	}
	if env.Code != 0 {
		return nil, provider.Submission(k.Name(), "build route", fmt.Errorf("code %d: %s", env.Code, env.Message))
	}

	var build kyberBuild
	if err := json.Unmarshal(env.Data, &build); err != nil {
		return nil, provider.Submission(k.Name(), "build route", err)
	}

	data, err := decodeHexData(build.Data)
	if err != nil {
		return nil, provider.Submission(k.Name(), "build route", err)
	}
	value, err := parseBig(build.TransactionValue)
	if err != nil {
		return nil, provider.Submission(k.Name(), "build route", err)
	}
	gas, _ := strconv.ParseUint(build.Gas, 10, 64)

	router := build.RouterAddress
	if router == "" {
		router = raw.RouterAddress
	}

	result, err := executeEVM(ctx, k.Name(), wallet, req, router, types.EVMTx{
		ChainID: req.FromChain.EVMID(),
		To:      router,
		Data:    data,
		Value:   value,
		Gas:     gas,
	})
	if err != nil {
		return nil, err
	}
	result.OutputAmount = quote.Normalized.OutputAmount.String()
	return result, nil
}

// GetTransactionStatus reads the swap receipt; same-chain swaps settle in
// the source transaction.
func (k *KyberSwap) GetTransactionStatus(ctx context.Context, tx types.TxResult) (*types.SwapStatus, error) {
	reader, err := k.reader(tx.SourceChain.EVMID())
	if err != nil {
		return nil, upstream(k.Name(), "receipt", err)
	}

	receipt, err := reader.TransactionReceipt(ctx, common.HexToHash(tx.SourceTxHash))
	if errors.Is(err, ethereum.NotFound) {
		return &types.SwapStatus{Status: types.StatusProcessing}, nil
	}
	if err != nil {
		return nil, upstream(k.Name(), "receipt", err)
	}

	status := types.StatusFailed
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		status = types.StatusSuccess
	}
	return &types.SwapStatus{TxHash: tx.SourceTxHash, Status: status}, nil
}

func (k *KyberSwap) reader(chainID uint64) (receiptReader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if r, ok := k.readers[chainID]; ok {
		return r, nil
	}
	rpcURL, ok := k.cfg.RPC[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC configured for chain %d", chainID)
	}
	r, err := k.dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	k.readers[chainID] = r
	return r, nil
}

var _ provider.Adapter = (*KyberSwap)(nil)
