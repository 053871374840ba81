package adapters

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/client"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

type fakeIntents struct {
	assets    map[string]client.Asset
	quote     *client.Quote
	quoteErr  error
	params    client.QuoteParams
	status    *client.ExecutionStatus
	submitErr error
	submitted []string
}

func (f *fakeIntents) Asset(_ context.Context, ref types.TokenRef) (client.Asset, error) {
	a, ok := f.assets[ref.Key()]
	if !ok {
		return client.Asset{}, fmt.Errorf("token %s not supported", ref.Symbol)
	}
	return a, nil
}

func (f *fakeIntents) Quote(_ context.Context, params client.QuoteParams) (*client.Quote, error) {
	f.params = params
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeIntents) Status(context.Context, string) (*client.ExecutionStatus, error) {
	return f.status, nil
}

func (f *fakeIntents) SubmitDepositTx(_ context.Context, depositAddress, txHash string) error {
	f.submitted = append(f.submitted, depositAddress+"|"+txHash)
	return f.submitErr
}

func btcToUSDC() types.QuoteRequest {
	return types.QuoteRequest{
		FromChain:   types.Bitcoin,
		ToChain:     types.Arbitrum,
		FromToken:   btc,
		ToToken:     usdcArb,
		Amount:      "100000", // 0.001 BTC
		Sender:      "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Recipient:   recipient,
		SlippageBps: 100,
		FeeBps:      25,
	}
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{
		assets: map[string]client.Asset{
			btc.Key():     {AssetID: "nep141:btc.omft.near", Symbol: "BTC", Decimals: 8, PriceUSD: 60000},
			usdcArb.Key(): {AssetID: "nep141:arb-usdc.omft.near", Symbol: "USDC", Decimals: 6, PriceUSD: 1},
		},
		quote: &client.Quote{
			DepositAddress:     "bc1qdeposit",
			AmountInFormatted:  "0.001",
			AmountOutFormatted: "59.7",
			TimeEstimate:       600,
		},
	}
}

func TestNearIntents_GetQuote(t *testing.T) {
	api := newFakeIntents()
	n := NewNearIntents(api, NearIntentsConfig{Referral: "kyberswap"})

	q, err := n.GetQuote(context.Background(), btcToUSDC())
	require.NoError(t, err)

	assert.Equal(t, "59700000", q.OutputAmount.String())
	assert.Equal(t, "59.7", q.FormattedOutputAmount)
	assert.InDelta(t, 60, q.InputUSD, 1e-9)
	assert.InDelta(t, 59.7, q.OutputUSD, 1e-9)
	assert.InDelta(t, 0.5, q.PriceImpactPercent, 1e-9)
	assert.Equal(t, float64(600), q.TimeEstimateSeconds)
	assert.Equal(t, "bc1qdeposit", q.ContractAddress)

	assert.Equal(t, "nep141:btc.omft.near", api.params.OriginAsset)
	assert.Equal(t, "nep141:arb-usdc.omft.near", api.params.DestinationAsset)
	assert.Equal(t, "100000", api.params.Amount)
	assert.Equal(t, uint32(100), api.params.SlippageBps)
	assert.Equal(t, "kyberswap", api.params.Referral)
	assert.Equal(t, btcToUSDC().Sender, api.params.RefundTo)
}

func TestNearIntents_UnknownAssetIsNoRoute(t *testing.T) {
	req := btcToUSDC()
	req.ToToken = usdcEth
	req.ToChain = types.Ethereum

	n := NewNearIntents(newFakeIntents(), NearIntentsConfig{})
	_, err := n.GetQuote(context.Background(), req)
	assert.ErrorIs(t, err, provider.ErrNoRoute)
}

func TestNearIntents_QuoteErrors(t *testing.T) {
	api := newFakeIntents()
	api.quoteErr = &client.StatusError{Status: 400, Message: "Amount is too low for bridge"}
	n := NewNearIntents(api, NearIntentsConfig{})

	_, err := n.GetQuote(context.Background(), btcToUSDC())
	assert.ErrorIs(t, err, provider.ErrNoRoute)

	api.quoteErr = errors.New("connection reset")
	_, err = n.GetQuote(context.Background(), btcToUSDC())
	var upstreamErr *provider.UpstreamError
	assert.True(t, errors.As(err, &upstreamErr))
}

func TestNearIntents_CanSupport(t *testing.T) {
	n := NewNearIntents(newFakeIntents(), NearIntentsConfig{})
	assert.False(t, n.CanSupport(types.HighVolatilityPair, usdcEth, usdcArb))
	assert.True(t, n.CanSupport(types.StablePair, usdcEth, usdcArb))
	assert.True(t, n.CanSupport(types.HighVolatilityPair, btc, usdcArb))
}

func TestNearIntents_ExecuteSwap(t *testing.T) {
	api := newFakeIntents()
	n := NewNearIntents(api, NearIntentsConfig{})

	nq, err := n.GetQuote(context.Background(), btcToUSDC())
	require.NoError(t, err)
	quote := provider.Quote{Normalized: *nq, Adapter: n}

	_, err = n.ExecuteSwap(context.Background(), quote, types.Wallet{EVM: &fakeEVM{}})
	assert.ErrorIs(t, err, provider.ErrWalletNotConnected)

	wallet := &fakeBitcoin{}
	result, err := n.ExecuteSwap(context.Background(), quote, types.Wallet{Bitcoin: wallet})
	require.NoError(t, err)

	assert.Equal(t, "bc1qdeposit", wallet.to)
	assert.Equal(t, "100000", wallet.sats.String())
	assert.Equal(t, "btctxid", result.SourceTxHash)
	assert.Equal(t, "bc1qdeposit", result.Meta[metaDepositAddress])
	assert.Equal(t, "true", result.Meta[metaDepositNotice])
	assert.Equal(t, []string{"bc1qdeposit|btctxid"}, api.submitted)
}

func TestNearIntents_ExecuteSwapEVMDeposit(t *testing.T) {
	api := newFakeIntents()
	api.assets[usdcEth.Key()] = client.Asset{AssetID: "nep141:eth-usdc.omft.near", Decimals: 6, PriceUSD: 1}
	api.assets[btc.Key()] = client.Asset{AssetID: "nep141:btc.omft.near", Decimals: 8, PriceUSD: 60000}
	api.quote = &client.Quote{DepositAddress: "0xdeposit", AmountOutFormatted: "0.0000166"}
	api.submitErr = errors.New("unavailable")

	req := types.QuoteRequest{
		FromChain: types.Ethereum, ToChain: types.Bitcoin,
		FromToken: usdcEth, ToToken: btc,
		Amount: "1000000", Sender: sender, Recipient: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
	}

	n := NewNearIntents(api, NearIntentsConfig{})
	nq, err := n.GetQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1660", nq.OutputAmount.String())

	evm := &fakeEVM{}
	result, err := n.ExecuteSwap(context.Background(), provider.Quote{Normalized: *nq, Adapter: n}, types.Wallet{EVM: evm})
	require.NoError(t, err)

	assert.Equal(t, []string{usdcEth.Address + "|0xdeposit|1000000"}, evm.transfers)
	assert.Equal(t, "false", result.Meta[metaDepositNotice])
}

func TestNearIntents_GetTransactionStatus(t *testing.T) {
	tests := []struct {
		status string
		want   types.SwapState
	}{
		{"PENDING_DEPOSIT", types.StatusProcessing},
		{"PROCESSING", types.StatusProcessing},
		{"INCOMPLETE_DEPOSIT", types.StatusProcessing},
		{"SUCCESS", types.StatusSuccess},
		{"REFUNDED", types.StatusRefunded},
		{"FAILED", types.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			api := newFakeIntents()
			api.status = &client.ExecutionStatus{Status: tt.status, DestinationTxs: []string{"0xdst"}}
			n := NewNearIntents(api, NearIntentsConfig{})

			status, err := n.GetTransactionStatus(context.Background(), types.TxResult{Meta: map[string]string{metaDepositAddress: "bc1qdeposit"}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "0xdst", status.TxHash)
		})
	}

	n := NewNearIntents(newFakeIntents(), NearIntentsConfig{})
	_, err := n.GetTransactionStatus(context.Background(), types.TxResult{})
	assert.Error(t, err)
}
