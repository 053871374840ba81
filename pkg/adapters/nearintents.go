package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/client"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const (
	NearIntentsName = "near-intents"
	nearIntentsIcon = "https://near-intents.org/static/icons/near-intents.svg"

	metaDepositAddress = "depositAddress"
	metaDepositMemo    = "depositMemo"
	metaDepositNotice  = "depositSubmitted"

	quoteDeadline = 30 * time.Minute
)

// IntentsAPI is the part of the 1Click client the adapter drives
type IntentsAPI interface {
	Asset(ctx context.Context, ref types.TokenRef) (client.Asset, error)
	Quote(ctx context.Context, params client.QuoteParams) (*client.Quote, error)
	Status(ctx context.Context, depositAddress string) (*client.ExecutionStatus, error)
	SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error
}

// NearIntentsConfig configures the NEAR Intents adapter
type NearIntentsConfig struct {
	Referral string
}

// NearIntents swaps across chain families through 1Click deposit addresses:
// the user transfers to a one-off address and solvers deliver on the target.
type NearIntents struct {
	provider.Base
	api IntentsAPI
	cfg NearIntentsConfig
}

// NewNearIntents creates the NEAR Intents adapter
func NewNearIntents(api IntentsAPI, cfg NearIntentsConfig) *NearIntents {
	return &NearIntents{
		Base: provider.Base{
			ProviderName: NearIntentsName,
			IconURL:      nearIntentsIcon,
			Chains: []types.ChainID{
				types.Ethereum, types.Optimism, types.BSC, types.Polygon,
				types.Base, types.Arbitrum, types.Avalanche,
				types.Bitcoin, types.Near, types.Solana,
			},
		},
		api: api,
		cfg: cfg,
	}
}

// CanSupport refuses volatile EVM to EVM pairs
func (n *NearIntents) CanSupport(category types.Category, tokenIn, tokenOut types.TokenRef) bool {
	if tokenIn.Chain.IsEVM() && tokenOut.Chain.IsEVM() {
		return category != types.HighVolatilityPair
	}
	return true
}

// intentsQuote is the raw quote replayed by ExecuteSwap
type intentsQuote struct {
	*client.Quote
	OriginAsset      string
	DestinationAsset string
}

// UnmarshalJSON reads the 1Click quote response relayed by the quote
// stream, where the deposit details sit under "quote".
func (q *intentsQuote) UnmarshalJSON(data []byte) error {
	var wire struct {
		Quote        *client.Quote `json:"quote"`
		QuoteRequest struct {
			OriginAsset      string `json:"originAsset"`
			DestinationAsset string `json:"destinationAsset"`
		} `json:"quoteRequest"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Quote == nil {
		wire.Quote = new(client.Quote)
		if err := json.Unmarshal(data, wire.Quote); err != nil {
			return err
		}
	}
	q.Quote = wire.Quote
	q.OriginAsset = wire.QuoteRequest.OriginAsset
	q.DestinationAsset = wire.QuoteRequest.DestinationAsset
	return nil
}

// GetQuote implements provider.Adapter
func (n *NearIntents) GetQuote(ctx context.Context, req types.QuoteRequest) (*types.NormalizedQuote, error) {
	if err := n.CheckChains(req); err != nil {
		return nil, err
	}

	origin, err := n.api.Asset(ctx, req.FromToken)
	if err != nil {
		return nil, fmt.Errorf("%s: origin %s: %v: %w", n.Name(), req.FromToken.Symbol, err, provider.ErrNoRoute)
	}
	destination, err := n.api.Asset(ctx, req.ToToken)
	if err != nil {
		return nil, fmt.Errorf("%s: destination %s: %v: %w", n.Name(), req.ToToken.Symbol, err, provider.ErrNoRoute)
	}

	quote, err := n.api.Quote(ctx, client.QuoteParams{
		OriginAsset:      origin.AssetID,
		DestinationAsset: destination.AssetID,
		Amount:           req.Amount,
		SlippageBps:      req.SlippageBps,
		RefundTo:         req.Sender,
		Recipient:        req.Recipient,
		Deadline:         time.Now().Add(quoteDeadline),
		Referral:         n.cfg.Referral,
	})
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && statusErr.Status == 400 {
			return nil, fmt.Errorf("%s: %s: %w", n.Name(), statusErr.Message, provider.ErrNoRoute)
		}
		return nil, upstream(n.Name(), "quote", err)
	}
	if quote.DepositAddress == "" {
		return nil, upstream(n.Name(), "quote", fmt.Errorf("quote without deposit address"))
	}

	amountOut, err := unitsFromFormatted(quote.AmountOutFormatted, req.ToToken)
	if err != nil {
		return nil, upstream(n.Name(), "quote", err)
	}
	if amountOut.Sign() == 0 {
		return nil, fmt.Errorf("%s: zero output: %w", n.Name(), provider.ErrNoRoute)
	}

	amountIn, _ := req.AmountInt()
	inUSD := usdValue(amountIn, req.FromToken, origin.PriceUSD)
	outUSD := usdValue(amountOut, req.ToToken, destination.PriceUSD)
	q := &types.NormalizedQuote{
		OutputAmount:          amountOut,
		FormattedOutputAmount: quote.AmountOutFormatted,
		InputUSD:              inUSD,
		OutputUSD:             outUSD,
		TimeEstimateSeconds:   quote.TimeEstimate,
		PriceImpactPercent:    priceImpact(inUSD, outUSD),
		ContractAddress:       quote.DepositAddress,
		RawQuote: &intentsQuote{
			Quote:            quote,
			OriginAsset:      origin.AssetID,
			DestinationAsset: destination.AssetID,
		},
	}
	if math.IsNaN(q.PriceImpactPercent) && req.TokenInUSD > 0 && req.TokenOutUSD > 0 {
		q.PriceImpactPercent = priceImpact(usdValue(amountIn, req.FromToken, req.TokenInUSD), usdValue(amountOut, req.ToToken, req.TokenOutUSD))
	}
	return finishQuote(q, req), nil
}

// unitsFromFormatted converts a human amount into token units
func unitsFromFormatted(formatted string, token types.TokenRef) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", formatted, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount '%s'", formatted)
	}
	return token.ToUnits(d).BigInt(), nil
}

// ExecuteSwap transfers the input to the deposit address and reports the
// deposit hash to 1Click.
func (n *NearIntents) ExecuteSwap(ctx context.Context, quote provider.Quote, wallet types.Wallet) (*types.TxResult, error) {
	raw, err := decodeRaw[*intentsQuote](n.Name(), quote)
	if err != nil {
		return nil, err
	}

	req := quote.Normalized.Request
	amount, err := req.AmountInt()
	if err != nil {
		return nil, provider.Submission(n.Name(), "deposit", err)
	}

	depositAddress := raw.DepositAddress
	if depositAddress == "" {
		depositAddress = quote.Normalized.ContractAddress
	}
	if depositAddress == "" {
		return nil, provider.Submission(n.Name(), "deposit", errors.New("quote has no deposit address"))
	}

	hash, err := n.deposit(ctx, wallet, req, depositAddress, amount)
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		metaDepositAddress: depositAddress,
		metaDepositNotice:  "true",
	}
	if raw.DepositMemo != "" {
		meta[metaDepositMemo] = raw.DepositMemo
	}
	// A failed notice does not fail the swap.
	if err := n.api.SubmitDepositTx(ctx, depositAddress, hash); err != nil {
		meta[metaDepositNotice] = "false"
	}

	return &types.TxResult{
		SourceTxHash: hash,
		SourceChain:  req.FromChain,
		TargetChain:  req.ToChain,
		InputAmount:  req.Amount,
		OutputAmount: quote.Normalized.OutputAmount.String(),
		SourceToken:  req.FromToken,
		TargetToken:  req.ToToken,
		Status:       types.StatusProcessing,
		Meta:         meta,
	}, nil
}

func (n *NearIntents) deposit(ctx context.Context, wallet types.Wallet, req types.QuoteRequest, to string, amount *big.Int) (string, error) {
	token := req.FromToken
	contract := token.Address
	if token.IsNative {
		contract = ""
	}

	var (
		hash string
		err  error
	)
	switch req.FromChain.Family() {
	case types.FamilyEVM:
		if wallet.EVM == nil {
			return "", provider.ErrWalletNotConnected
		}
		hash, err = wallet.EVM.Transfer(ctx, req.FromChain.EVMID(), contract, to, amount)
	case types.FamilySolana:
		if wallet.Solana == nil {
			return "", provider.ErrWalletNotConnected
		}
		hash, err = wallet.Solana.Transfer(ctx, to, contract, amount)
	case types.FamilyNear:
		if wallet.Near == nil {
			return "", provider.ErrWalletNotConnected
		}
		hash, err = wallet.Near.Transfer(ctx, to, contract, amount)
	case types.FamilyBitcoin:
		if wallet.Bitcoin == nil {
			return "", provider.ErrWalletNotConnected
		}
		hash, err = wallet.Bitcoin.SendToAddress(ctx, to, amount)
	default:
		return "", provider.Submission(n.Name(), "deposit", fmt.Errorf("unsupported source chain %s", req.FromChain))
	}
	if err != nil {
		return "", provider.Submission(n.Name(), "deposit", err)
	}
	return hash, nil
}

// GetTransactionStatus maps the 1Click execution status
func (n *NearIntents) GetTransactionStatus(ctx context.Context, tx types.TxResult) (*types.SwapStatus, error) {
	depositAddress := tx.Meta[metaDepositAddress]
	if depositAddress == "" {
		return nil, upstream(n.Name(), "status", fmt.Errorf("transaction %s has no deposit address", tx.SourceTxHash))
	}

	status, err := n.api.Status(ctx, depositAddress)
	if err != nil {
		return nil, upstream(n.Name(), "status", err)
	}

	out := &types.SwapStatus{Status: intentsState(status.Status)}
	if len(status.DestinationTxs) > 0 {
		out.TxHash = status.DestinationTxs[0]
	}
	return out, nil
}

func intentsState(status string) types.SwapState {
	switch strings.ToUpper(status) {
	case "SUCCESS", "COMPLETED":
		return types.StatusSuccess
	case "FAILED":
		return types.StatusFailed
	case "REFUNDED":
		return types.StatusRefunded
	default:
		return types.StatusProcessing
	}
}

var _ provider.Adapter = (*NearIntents)(nil)
var _ IntentsAPI = (*client.OneClickClient)(nil)
