package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const (
	LiFiName           = "lifi"
	DefaultLiFiBaseURL = "https://li.quest"
	lifiIcon           = "https://li.fi/logo.svg"

	lifiSolanaChainID = "1151111081099710"
	lifiZeroAddress   = "0x0000000000000000000000000000000000000000"
	lifiSolNative     = "11111111111111111111111111111111"
)

// LiFiConfig configures the LI.FI adapter
type LiFiConfig struct {
	BaseURL    string
	Integrator string
	APIKey     string
}

// LiFi bridges between EVM chains and Solana through the LI.FI API.
type LiFi struct {
	provider.Base
	api *apiClient
	cfg LiFiConfig
}

// NewLiFi creates the LI.FI adapter
func NewLiFi(cfg LiFiConfig, opts ...ClientOption) *LiFi {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLiFiBaseURL
	}

	opts = append([]ClientOption{WithHeader("x-lifi-api-key", cfg.APIKey)}, opts...)
	return &LiFi{
		Base: provider.Base{
			ProviderName: LiFiName,
			IconURL:      lifiIcon,
			Chains: []types.ChainID{
				types.Ethereum, types.Optimism, types.BSC, types.Polygon,
				types.Base, types.Arbitrum, types.Avalanche, types.Solana,
			},
		},
		api: newAPIClient(cfg.BaseURL, opts...),
		cfg: cfg,
	}
}

type lifiCost struct {
	AmountUSD string `json:"amountUSD"`
	Included  bool   `json:"included"`
}

type lifiTxRequest struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
	ChainID  int64  `json:"chainId"`
}

type lifiQuote struct {
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	Estimate struct {
		ToAmount          string     `json:"toAmount"`
		FromAmountUSD     string     `json:"fromAmountUSD"`
		ToAmountUSD       string     `json:"toAmountUSD"`
		ApprovalAddress   string     `json:"approvalAddress"`
		ExecutionDuration float64    `json:"executionDuration"`
		FeeCosts          []lifiCost `json:"feeCosts"`
		GasCosts          []lifiCost `json:"gasCosts"`
	} `json:"estimate"`
	TransactionRequest lifiTxRequest `json:"transactionRequest"`
}

type lifiStatus struct {
	Status    string `json:"status"`
	Substatus string `json:"substatus"`
	Receiving struct {
		TxHash string `json:"txHash"`
	} `json:"receiving"`
}

func lifiChain(chain types.ChainID) string {
	if chain == types.Solana {
		return lifiSolanaChainID
	}
	return chain.String()
}

func lifiToken(token types.TokenRef) string {
	if token.IsNative {
		if token.Chain == types.Solana {
			return lifiSolNative
		}
		return lifiZeroAddress
	}
	return token.Address
}

// GetQuote implements provider.Adapter
func (l *LiFi) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	if err := l.CheckChains(req); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("fromChain", lifiChain(req.FromChain))
	query.Set("toChain", lifiChain(req.ToChain))
	query.Set("fromToken", lifiToken(req.FromToken))
	query.Set("toToken", lifiToken(req.ToToken))
	query.Set("fromAmount", req.Amount)
	query.Set("fromAddress", req.Sender)
	query.Set("toAddress", req.Recipient)
	if req.SlippageBps > 0 {
		query.Set("slippage", decimal.New(int64(req.SlippageBps), -4).String())
	}
	if l.cfg.Integrator != "" {
		query.Set("integrator", l.cfg.Integrator)
		if req.FeeBps > 0 {
			query.Set("fee", decimal.New(int64(req.FeeBps), -4).String())
		}
	}

	var quote lifiQuote
	if err := l.api.getJSON(ctx, "/v1/quote", query, &quote); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", l.Name(), provider.ErrNoRoute)
		}
		return nil, upstream(l.Name(), "quote", err)
	}

	amountOut, err := parseBig(quote.Estimate.ToAmount)
	if err != nil {
		return nil, upstream(l.Name(), "quote", err)
	}
	if amountOut.Sign() == 0 {
		return nil, fmt.Errorf("%s: zero output: %w", l.Name(), provider.ErrNoRoute)
	}

	var protocolFee, gasFee float64
	for _, c := range quote.Estimate.FeeCosts {
		if !c.Included {
			protocolFee += parseFloat(c.AmountUSD)
		}
	}
	for _, c := range quote.Estimate.GasCosts {
		gasFee += parseFloat(c.AmountUSD)
	}

	inUSD := parseFloat(quote.Estimate.FromAmountUSD)
	outUSD := parseFloat(quote.Estimate.ToAmountUSD)
	q := &types.NormalizedQuote{
		OutputAmount:        amountOut,
		InputUSD:            inUSD,
		OutputUSD:           outUSD,
		TimeEstimateSeconds: quote.Estimate.ExecutionDuration,
		PriceImpactPercent:  priceImpact(inUSD, outUSD),
		GasFeeUSD:           gasFee,
		ProtocolFee:         protocolFee,
		ContractAddress:     quote.Estimate.ApprovalAddress,
		RawQuote:            &quote,
	}
	if protocolFee > 0 {
		q.ProtocolFeeDisplay = "$" + strconv.FormatFloat(protocolFee, 'f', 2, 64)
	}
	return finishQuote(q, req), nil
}

// ExecuteSwap submits the prepared transaction on the source chain
func (l *LiFi) ExecuteSwap(ctx context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	raw, err := decodeRaw[*lifiQuote](l.Name(), quote)
	if err != nil {
		return nil, err
	}

	req := quote.Normalized.Request
	txReq := raw.TransactionRequest

	var result *types.TxResult
	if req.FromChain == types.Solana {
		result, err = l.executeSolana(ctx, wallet, req, txReq)
	} else {
		result, err = l.executeEVM(ctx, wallet, req, raw)
	}
	if err != nil {
		return nil, err
	}

	result.OutputAmount = quote.Normalized.OutputAmount.String()
	result.Meta = map[string]string{"tool": raw.Tool}
	return result, nil
}

func (l *LiFi) executeEVM(ctx context.Context, wallet types.Wallet, req types.QuoteRequest, raw *lifiQuote) (*types.TxResult, error) {
	txReq := raw.TransactionRequest
	data, err := decodeHexData(txReq.Data)
	if err != nil {
		return nil, provider.Submission(l.Name(), "decode transaction", err)
	}
	value, err := parseBig(txReq.Value)
	if err != nil {
		return nil, provider.Submission(l.Name(), "decode transaction", err)
	}
	gas, err := parseBig(txReq.GasLimit)
	if err != nil {
		return nil, provider.Submission(l.Name(), "decode transaction", err)
	}

	return executeEVM(ctx, l.Name(), wallet, req, raw.Estimate.ApprovalAddress, types.EVMTx{
		ChainID: req.FromChain.EVMID(),
		To:      txReq.To,
		Data:    data,
		Value:   value,
		Gas:     gas.Uint64(),
	})
}

func (l *LiFi) executeSolana(ctx context.Context, wallet types.Wallet, req types.QuoteRequest, txReq lifiTxRequest) (*types.TxResult, error) {
	if wallet.Solana == nil {
		return nil, provider.ErrWalletNotConnected
	}

	rawTx, err := base64.StdEncoding.DecodeString(txReq.Data)
	if err != nil {
		return nil, provider.Submission(l.Name(), "decode transaction", err)
	}

	sig, err := wallet.Solana.SendTransaction(ctx, rawTx)
	if err != nil {
		return nil, provider.Submission(l.Name(), "swap", err)
	}

	return &types.TxResult{
		SourceTxHash: sig,
		SourceChain:  req.FromChain,
		TargetChain:  req.ToChain,
		InputAmount:  req.Amount,
		SourceToken:  req.FromToken,
		TargetToken:  req.ToToken,
		Status:       types.StatusProcessing,
	}, nil
}

// GetTransactionStatus queries the LI.FI status endpoint by source hash
func (l *LiFi) GetTransactionStatus(ctx context.Context, tx types.TxResult) (*types.SwapStatus, error) {
	query := url.Values{}
	query.Set("txHash", tx.SourceTxHash)
	query.Set("fromChain", lifiChain(tx.SourceChain))
	query.Set("toChain", lifiChain(tx.TargetChain))
	if tool := tx.Meta["tool"]; tool != "" {
		query.Set("bridge", tool)
	}

	var status lifiStatus
	if err := l.api.getJSON(ctx, "/v1/status", query, &status); err != nil {
		// Unindexed transactions answer 404 until the source tx is seen.
		if statusOf(err) == http.StatusNotFound {
			return &types.SwapStatus{Status: types.StatusProcessing}, nil
		}
		return nil, upstream(l.Name(), "status", err)
	}

	out := &types.SwapStatus{TxHash: status.Receiving.TxHash, Status: types.StatusProcessing}
	switch strings.ToUpper(status.Status) {
	case "DONE":
		out.Status = types.StatusSuccess
		if strings.EqualFold(status.Substatus, "REFUNDED") {
			out.Status = types.StatusRefunded
		}
	case "FAILED", "INVALID":
		out.Status = types.StatusFailed
	}
	return out, nil
}

var _ provider.Adapter = (*LiFi)(nil)
