package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const (
	DeBridgeName           = "debridge"
	DefaultDeBridgeBaseURL = "https://dln.debridge.finance"
	debridgeIcon           = "https://app.debridge.finance/assets/images/logo.svg"
)

// DeBridgeConfig configures the deBridge DLN adapter
type DeBridgeConfig struct {
	BaseURL           string
	AffiliateReceiver string
	ReferralCode      string
}

// DeBridge bridges between EVM chains through DLN limit orders.
type DeBridge struct {
	provider.Base
	api *apiClient
	cfg DeBridgeConfig
}

// NewDeBridge creates the deBridge adapter
func NewDeBridge(cfg DeBridgeConfig, opts ...ClientOption) *DeBridge {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeBridgeBaseURL
	}

	return &DeBridge{
		Base: provider.Base{
			ProviderName: DeBridgeName,
			IconURL:      debridgeIcon,
			Chains: []types.ChainID{
				types.Ethereum, types.Optimism, types.BSC, types.Polygon,
				types.Base, types.Arbitrum, types.Avalanche,
			},
		},
		api: newAPIClient(cfg.BaseURL, opts...),
		cfg: cfg,
	}
}

// CanSupport refuses exotic pairs
func (d *DeBridge) CanSupport(category types.Category, _, _ types.TokenRef) bool {
	return category != types.ExoticPair
}

type dlnTokenAmount struct {
	Amount              string  `json:"amount"`
	RecommendedAmount   string  `json:"recommendedAmount"`
	ApproximateUsdValue float64 `json:"approximateUsdValue"`
}

type dlnOrder struct {
	OrderID    string `json:"orderId"`
	FixFee     string `json:"fixFee"`
	Estimation struct {
		SrcChainTokenIn  dlnTokenAmount `json:"srcChainTokenIn"`
		DstChainTokenOut dlnTokenAmount `json:"dstChainTokenOut"`
	} `json:"estimation"`
	Tx struct {
		To              string `json:"to"`
		Data            string `json:"data"`
		Value           string `json:"value"`
		AllowanceTarget string `json:"allowanceTarget"`
	} `json:"tx"`
	Order struct {
		ApproximateFulfillmentDelay float64 `json:"approximateFulfillmentDelay"`
	} `json:"order"`
}

type dlnOrderState struct {
	Status                    string `json:"status"`
	State                     string `json:"state"`
	FulfilledDstEventMetadata struct {
		TransactionHash struct {
			StringValue string `json:"stringValue"`
		} `json:"transactionHash"`
	} `json:"fulfilledDstEventMetadata"`
}

// GetQuote implements provider.Adapter
func (d *DeBridge) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	if err := d.CheckChains(req); err != nil {
		return nil, err
	}
	if req.FromChain == req.ToChain {
		return nil, fmt.Errorf("%s needs two chains: %w", d.Name(), provider.ErrUnsupportedChain)
	}

	query := url.Values{}
	query.Set("srcChainId", req.FromChain.String())
	query.Set("srcChainTokenIn", dlnToken(req.FromToken))
	query.Set("srcChainTokenInAmount", req.Amount)
	query.Set("dstChainId", req.ToChain.String())
	query.Set("dstChainTokenOut", dlnToken(req.ToToken))
	query.Set("dstChainTokenOutAmount", "auto")
	query.Set("dstChainTokenOutRecipient", req.Recipient)
	query.Set("senderAddress", req.Sender)
	query.Set("srcChainOrderAuthorityAddress", req.Sender)
	query.Set("dstChainOrderAuthorityAddress", req.Recipient)
	query.Set("prependOperatingExpenses", "true")
	if req.FeeBps > 0 && d.cfg.AffiliateReceiver != "" {
		query.Set("affiliateFeePercent", decimal.New(int64(req.FeeBps), -2).String())
		query.Set("affiliateFeeRecipient", d.cfg.AffiliateReceiver)
	}
	if d.cfg.ReferralCode != "" {
		query.Set("referralCode", d.cfg.ReferralCode)
	}

	var order dlnOrder
	if err := d.api.getJSON(ctx, "/v1.0/dln/order/create-tx", query, &order); err != nil {
		if status := statusOf(err); status == http.StatusBadRequest || status == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %v: %w", d.Name(), err, provider.ErrNoRoute)
		}
		return nil, upstream(d.Name(), "create-tx", err)
	}

	out := order.Estimation.DstChainTokenOut
	amount := out.RecommendedAmount
	if amount == "" {
		amount = out.Amount
	}
	amountOut, err := parseBig(amount)
	if err != nil {
		return nil, upstream(d.Name(), "create-tx", err)
	}
	if amountOut.Sign() == 0 {
		return nil, fmt.Errorf("%s: zero output: %w", d.Name(), provider.ErrNoRoute)
	}

	inUSD := order.Estimation.SrcChainTokenIn.ApproximateUsdValue
	outUSD := out.ApproximateUsdValue
	q := &types.NormalizedQuote{
		OutputAmount:        amountOut,
		InputUSD:            inUSD,
		OutputUSD:           outUSD,
		TimeEstimateSeconds: order.Order.ApproximateFulfillmentDelay,
		PriceImpactPercent:  priceImpact(inUSD, outUSD),
		ContractAddress:     order.Tx.To,
		RawQuote:            &order,
	}
	if fee, err := parseBig(order.FixFee); err == nil && fee.Sign() > 0 {
		native := types.TokenRef{Decimals: 18}
		q.ProtocolFeeDisplay = types.FormatUnits(fee, native) + " native"
	}
	return finishQuote(q, req), nil
}

func dlnToken(token types.TokenRef) string {
	if token.IsNative {
		return lifiZeroAddress
	}
	return token.Address
}

// ExecuteSwap submits the order creation transaction
func (d *DeBridge) ExecuteSwap(ctx context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	order, err := decodeRaw[*dlnOrder](d.Name(), quote)
	if err != nil {
		return nil, err
	}

	req := quote.Normalized.Request
	data, err := decodeHexData(order.Tx.Data)
	if err != nil {
		return nil, provider.Submission(d.Name(), "decode transaction", err)
	}
	value, err := parseBig(order.Tx.Value)
	if err != nil {
		return nil, provider.Submission(d.Name(), "decode transaction", err)
	}

	spender := order.Tx.AllowanceTarget
	if spender == "" {
		spender = order.Tx.To
	}

	result, err := executeEVM(ctx, d.Name(), wallet, req, spender, types.EVMTx{
		ChainID: req.FromChain.EVMID(),
		To:      order.Tx.To,
		Data:    data,
		Value:   value,
	})
	if err != nil {
		return nil, err
	}

	result.OutputAmount = quote.Normalized.OutputAmount.String()
	result.Meta = map[string]string{"orderId": order.OrderID}
	return result, nil
}

// GetTransactionStatus looks the DLN order up by id
func (d *DeBridge) GetTransactionStatus(ctx context.Context, tx types.TxResult) (*types.SwapStatus, error) {
	orderID := tx.Meta["orderId"]
	if orderID == "" {
		return nil, upstream(d.Name(), "order status", fmt.Errorf("transaction %s has no order id", tx.SourceTxHash))
	}

	var state dlnOrderState
	if err := d.api.getJSON(ctx, "/v1.0/dln/order/"+url.PathEscape(orderID), nil, &state); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return &types.SwapStatus{Status: types.StatusProcessing}, nil
		}
		return nil, upstream(d.Name(), "order status", err)
	}

	status := state.Status
	if status == "" {
		status = state.State
	}

	out := &types.SwapStatus{
		TxHash: state.FulfilledDstEventMetadata.TransactionHash.StringValue,
		Status: types.StatusProcessing,
	}
	switch strings.ToLower(status) {
	case "fulfilled", "sentunlock", "claimedunlock":
		out.Status = types.StatusSuccess
	case "ordercancelled", "sentordercancel", "claimedordercancel", "cancelled":
		out.Status = types.StatusRefunded
	}
	return out, nil
}

var _ provider.Adapter = (*DeBridge)(nil)
