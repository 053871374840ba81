package adapters

import (
	"context"
	"encoding/base64"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const lifiDiamond = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"

func lifiQuoteBody(txData string) map[string]any {
	return map[string]any{
		"id":   "q-1",
		"tool": "stargate",
		"estimate": map[string]any{
			"toAmount":          "996000",
			"fromAmountUSD":     "1.00",
			"toAmountUSD":       "0.996",
			"approvalAddress":   lifiDiamond,
			"executionDuration": 45,
			"feeCosts": []any{
				map[string]any{"amountUSD": "0.25", "included": false},
				map[string]any{"amountUSD": "0.10", "included": true},
			},
			"gasCosts": []any{
				map[string]any{"amountUSD": "1.5"},
				map[string]any{"amountUSD": "0.5"},
			},
		},
		"transactionRequest": map[string]any{
			"to":       lifiDiamond,
			"data":     txData,
			"value":    "0x0",
			"gasLimit": "0x30d40",
			"chainId":  1,
		},
	}
}

func TestLiFi_GetQuote(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("fromChain"))
		assert.Equal(t, "42161", q.Get("toChain"))
		assert.Equal(t, "1000000", q.Get("fromAmount"))
		assert.Equal(t, "0.005", q.Get("slippage"))
		assert.Equal(t, "0.0005", q.Get("fee"))
		assert.Equal(t, "xchain", q.Get("integrator"))
		writeJSON(t, w, http.StatusOK, lifiQuoteBody("0xabcd"))
	})

	l := NewLiFi(LiFiConfig{BaseURL: srv.URL, Integrator: "xchain"})
	q, err := l.GetQuote(context.Background(), bridgeRequest())
	require.NoError(t, err)

	assert.Equal(t, "996000", q.OutputAmount.String())
	assert.Equal(t, "0.996", q.FormattedOutputAmount)
	assert.InDelta(t, 0.25, q.ProtocolFee, 1e-9)
	assert.Equal(t, "$0.25", q.ProtocolFeeDisplay)
	assert.InDelta(t, 2.0, q.GasFeeUSD, 1e-9)
	assert.Equal(t, float64(45), q.TimeEstimateSeconds)
	assert.InDelta(t, 0.4, q.PriceImpactPercent, 1e-9)
	assert.Equal(t, lifiDiamond, q.ContractAddress)
}

func TestLiFi_SolanaIdentifiers(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, lifiSolanaChainID, q.Get("fromChain"))
		assert.Equal(t, usdcSol.Address, q.Get("fromToken"))
		assert.Equal(t, lifiZeroAddress, q.Get("toToken"))
		writeJSON(t, w, http.StatusOK, lifiQuoteBody(""))
	})

	req := bridgeRequest()
	req.FromChain = types.Solana
	req.FromToken = usdcSol
	req.ToChain = types.Ethereum
	req.ToToken = ethEth

	l := NewLiFi(LiFiConfig{BaseURL: srv.URL})
	_, err := l.GetQuote(context.Background(), req)
	require.NoError(t, err)
}

func TestLiFi_NotFoundIsNoRoute(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "No available quotes for the requested transfer"})
	})

	l := NewLiFi(LiFiConfig{BaseURL: srv.URL})
	_, err := l.GetQuote(context.Background(), bridgeRequest())
	assert.ErrorIs(t, err, provider.ErrNoRoute)
}

func TestLiFi_UnsupportedChain(t *testing.T) {
	req := bridgeRequest()
	req.ToChain = types.Bitcoin
	req.ToToken = btc

	l := NewLiFi(LiFiConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := l.GetQuote(context.Background(), req)
	assert.ErrorIs(t, err, provider.ErrUnsupportedChain)
}

func TestLiFi_ExecuteEVM(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, lifiQuoteBody("0xabcd"))
	})

	l := NewLiFi(LiFiConfig{BaseURL: srv.URL})
	nq, err := l.GetQuote(context.Background(), bridgeRequest())
	require.NoError(t, err)

	evm := &fakeEVM{allowance: big1e18()}
	result, err := l.ExecuteSwap(context.Background(), provider.Quote{Normalized: *nq, Adapter: l}, types.Wallet{EVM: evm})
	require.NoError(t, err)

	assert.Empty(t, evm.approvals, "sufficient allowance skips approval")
	require.Len(t, evm.sent, 1)
	assert.Equal(t, lifiDiamond, evm.sent[0].To)
	assert.Equal(t, uint64(200000), evm.sent[0].Gas)
	assert.Equal(t, "stargate", result.Meta["tool"])
	assert.Equal(t, "996000", result.OutputAmount)
}

func TestLiFi_ExecuteSolana(t *testing.T) {
	payload := []byte("serialized-solana-tx")
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, lifiQuoteBody(base64.StdEncoding.EncodeToString(payload)))
	})

	req := bridgeRequest()
	req.FromChain = types.Solana
	req.FromToken = usdcSol

	l := NewLiFi(LiFiConfig{BaseURL: srv.URL})
	nq, err := l.GetQuote(context.Background(), req)
	require.NoError(t, err)

	_, err = l.ExecuteSwap(context.Background(), provider.Quote{Normalized: *nq, Adapter: l}, types.Wallet{EVM: &fakeEVM{}})
	assert.ErrorIs(t, err, provider.ErrWalletNotConnected)

	sol := &fakeSolana{}
	result, err := l.ExecuteSwap(context.Background(), provider.Quote{Normalized: *nq, Adapter: l}, types.Wallet{Solana: sol})
	require.NoError(t, err)
	assert.Equal(t, "5solsig", result.SourceTxHash)
	require.Len(t, sol.raw, 1)
	assert.Equal(t, payload, sol.raw[0])
}

func TestLiFi_GetTransactionStatus(t *testing.T) {
	tests := []struct {
		status, substatus string
		want              types.SwapState
	}{
		{"PENDING", "WAIT_DESTINATION_TRANSACTION", types.StatusProcessing},
		{"DONE", "COMPLETED", types.StatusSuccess},
		{"DONE", "REFUNDED", types.StatusRefunded},
		{"FAILED", "", types.StatusFailed},
		{"NOT_FOUND", "", types.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.substatus, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/status", r.URL.Path)
				assert.Equal(t, "0xsrc", r.URL.Query().Get("txHash"))
				assert.Equal(t, "stargate", r.URL.Query().Get("bridge"))
				writeJSON(t, w, http.StatusOK, map[string]any{
					"status":    tt.status,
					"substatus": tt.substatus,
					"receiving": map[string]any{"txHash": "0xdst"},
				})
			})

			l := NewLiFi(LiFiConfig{BaseURL: srv.URL})
			status, err := l.GetTransactionStatus(context.Background(), types.TxResult{
				SourceTxHash: "0xsrc",
				SourceChain:  types.Ethereum,
				TargetChain:  types.Arbitrum,
				Meta:         map[string]string{"tool": "stargate"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "0xdst", status.TxHash)
		})
	}
}

func TestPriceImpactUnknown(t *testing.T) {
	assert.True(t, math.IsNaN(priceImpact(0, 1)))
}
