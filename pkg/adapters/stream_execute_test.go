package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/aggregator"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// quoteStream serves one SSE quote event per entry and then completes
func quoteStream(t *testing.T, events ...map[string]any) *httptest.Server {
	t.Helper()
	return newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, ev := range events {
			data, err := json.Marshal(ev)
			assert.NoError(t, err)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", aggregator.EventQuote, data)
			flusher.Flush()
		}
		fmt.Fprintf(w, "event: %s\ndata: {}\n\n", aggregator.EventComplete)
		flusher.Flush()
	})
}

// streamedBest runs a round against streamURL and returns its best quote
func streamedBest(t *testing.T, streamURL string, req types.QuoteRequest, adapters ...provider.Adapter) provider.Quote {
	t.Helper()
	reg, err := provider.NewRegistry(adapters...)
	require.NoError(t, err)

	orch, err := aggregator.New(aggregator.Options{
		Registry:       reg,
		StreamURL:      streamURL,
		SoftTimeout:    50 * time.Millisecond,
		AdapterTimeout: 500 * time.Millisecond,
		StreamTimeout:  2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(orch.Close)

	round := orch.Start(context.Background(), req, aggregator.Preferences{})
	for range round.Updates() {
	}
	snap, err := round.Wait()
	require.NoError(t, err)
	require.Equal(t, aggregator.PhaseStream, snap.Phase)

	best, ok := snap.Best()
	require.True(t, ok)
	return best
}

func TestStreamedQuote_LiFiExecutes(t *testing.T) {
	stream := quoteStream(t, map[string]any{
		"provider":        LiFiName,
		"outputAmount":    "996000",
		"contractAddress": lifiDiamond,
		"rawQuote":        lifiQuoteBody("0xabcd"),
	})

	l := NewLiFi(LiFiConfig{BaseURL: "http://127.0.0.1:1"})
	best := streamedBest(t, stream.URL, bridgeRequest(), l)
	require.Equal(t, LiFiName, best.Provider())
	_, isJSON := best.Normalized.RawQuote.(json.RawMessage)
	require.True(t, isJSON)

	evm := &fakeEVM{allowance: big1e18()}
	result, err := best.Adapter.ExecuteSwap(context.Background(), best, types.Wallet{EVM: evm})
	require.NoError(t, err)

	require.Len(t, evm.sent, 1)
	assert.Equal(t, lifiDiamond, evm.sent[0].To)
	assert.Equal(t, []byte{0xab, 0xcd}, evm.sent[0].Data)
	assert.Equal(t, uint64(200000), evm.sent[0].Gas)
	assert.Equal(t, "0xswap", result.SourceTxHash)
	assert.Equal(t, "stargate", result.Meta["tool"])
	assert.Equal(t, "996000", result.OutputAmount)
}

func TestStreamedQuote_DeBridgeExecutes(t *testing.T) {
	stream := quoteStream(t, map[string]any{
		"provider":        DeBridgeName,
		"outputAmount":    "992000",
		"contractAddress": dlnSource,
		"rawQuote":        dlnOrderBody(),
	})

	d := NewDeBridge(DeBridgeConfig{BaseURL: "http://127.0.0.1:1"})
	best := streamedBest(t, stream.URL, bridgeRequest(), d)
	require.Equal(t, DeBridgeName, best.Provider())

	evm := &fakeEVM{}
	result, err := best.Adapter.ExecuteSwap(context.Background(), best, types.Wallet{EVM: evm})
	require.NoError(t, err)

	assert.Equal(t, []string{usdcEth.Address + "->0xallowance"}, evm.approvals)
	require.Len(t, evm.sent, 1)
	assert.Equal(t, dlnSource, evm.sent[0].To)
	assert.Equal(t, "1000000000000000", evm.sent[0].Value.String())
	assert.Equal(t, "0xorder", result.Meta["orderId"])
	assert.Equal(t, "992000", result.OutputAmount)
}

func TestStreamedQuote_NearIntentsExecutes(t *testing.T) {
	stream := quoteStream(t, map[string]any{
		"provider":              NearIntentsName,
		"outputAmount":          "59700000",
		"formattedOutputAmount": "59.7",
		"contractAddress":       "bc1qdeposit",
		"rawQuote": map[string]any{
			"quote": map[string]any{
				"depositAddress":     "bc1qdeposit",
				"depositMemo":        "memo-1",
				"amountInFormatted":  "0.001",
				"amountOutFormatted": "59.7",
				"timeEstimate":       600,
			},
			"quoteRequest": map[string]any{
				"originAsset":      "nep141:btc.omft.near",
				"destinationAsset": "nep141:arb-usdc.omft.near",
			},
		},
	})

	api := newFakeIntents()
	n := NewNearIntents(api, NearIntentsConfig{})
	best := streamedBest(t, stream.URL, btcToUSDC(), n)
	require.Equal(t, NearIntentsName, best.Provider())

	wallet := &fakeBitcoin{}
	result, err := best.Adapter.ExecuteSwap(context.Background(), best, types.Wallet{Bitcoin: wallet})
	require.NoError(t, err)

	assert.Equal(t, "bc1qdeposit", wallet.to)
	assert.Equal(t, "100000", wallet.sats.String())
	assert.Equal(t, "memo-1", result.Meta[metaDepositMemo])
	assert.Equal(t, []string{"bc1qdeposit|btctxid"}, api.submitted)
}

func TestStreamedQuote_NearIntentsFallsBackToContractAddress(t *testing.T) {
	req := btcToUSDC()
	n := NewNearIntents(newFakeIntents(), NearIntentsConfig{})
	quote := provider.Quote{
		Adapter: n,
		Normalized: types.NormalizedQuote{
			OutputAmount:    big1e18(),
			ContractAddress: "bc1qcontract",
			RawQuote:        json.RawMessage(`{"amountOutFormatted":"59.7"}`),
			Request:         req,
		},
	}

	wallet := &fakeBitcoin{}
	_, err := n.ExecuteSwap(context.Background(), quote, types.Wallet{Bitcoin: wallet})
	require.NoError(t, err)
	assert.Equal(t, "bc1qcontract", wallet.to)

	quote.Normalized.ContractAddress = ""
	_, err = n.ExecuteSwap(context.Background(), quote, types.Wallet{Bitcoin: wallet})
	var subErr *provider.SubmissionError
	assert.ErrorAs(t, err, &subErr)
}

func TestDecodeRaw(t *testing.T) {
	quote := func(raw any) provider.Quote {
		return provider.Quote{Normalized: types.NormalizedQuote{RawQuote: raw}}
	}

	order := &dlnOrder{OrderID: "0xorder"}
	got, err := decodeRaw[*dlnOrder](DeBridgeName, quote(order))
	require.NoError(t, err)
	assert.Same(t, order, got)

	got, err = decodeRaw[*dlnOrder](DeBridgeName, quote(json.RawMessage(`{"orderId":"0xstream"}`)))
	require.NoError(t, err)
	assert.Equal(t, "0xstream", got.OrderID)

	kq, err := decodeRaw[kyberQuote](KyberSwapName, quote([]byte(`{"routeSummary":{"amountOut":"1"},"routerAddress":"0xrouter"}`)))
	require.NoError(t, err)
	assert.Equal(t, "0xrouter", kq.RouterAddress)
	assert.JSONEq(t, `{"amountOut":"1"}`, string(kq.RouteSummary))

	for name, raw := range map[string]any{
		"wrong type": &lifiQuote{},
		"missing":    nil,
		"bad json":   json.RawMessage(`{"orderId":`),
		"null":       json.RawMessage(`null`),
	} {
		_, err := decodeRaw[*dlnOrder](DeBridgeName, quote(raw))
		var subErr *provider.SubmissionError
		assert.ErrorAs(t, err, &subErr, name)
	}
}
