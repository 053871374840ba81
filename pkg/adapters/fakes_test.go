package adapters

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	usdcEth = types.TokenRef{Chain: types.Ethereum, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6}
	usdcArb = types.TokenRef{Chain: types.Arbitrum, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Symbol: "USDC", Decimals: 6}
	ethEth  = types.TokenRef{Chain: types.Ethereum, Address: types.NativeEVMAddress, Symbol: "ETH", Decimals: 18, IsNative: true}
	btc     = types.TokenRef{Chain: types.Bitcoin, Address: "BTC", Symbol: "BTC", Decimals: 8, IsNative: true}
	usdcSol = types.TokenRef{Chain: types.Solana, Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Decimals: 6}
)

const (
	sender    = "0x1111111111111111111111111111111111111111"
	recipient = "0x2222222222222222222222222222222222222222"
)

func bridgeRequest() types.QuoteRequest {
	return types.QuoteRequest{
		FromChain:   types.Ethereum,
		ToChain:     types.Arbitrum,
		FromToken:   usdcEth,
		ToToken:     usdcArb,
		Amount:      "1000000",
		Sender:      sender,
		Recipient:   recipient,
		SlippageBps: 50,
		FeeBps:      5,
		TokenInUSD:  1,
		TokenOutUSD: 1,
	}
}

func swapRequest() types.QuoteRequest {
	req := bridgeRequest()
	req.ToChain = types.Ethereum
	req.ToToken = ethEth
	req.TokenOutUSD = 2000
	return req
}

// fastRetries keeps retry tests quick
func fastRetries() ClientOption {
	return WithRetryDelay(time.Millisecond)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type fakeEVM struct {
	mu        sync.Mutex
	allowance *big.Int
	sent      []types.EVMTx
	approvals []string
	transfers []string
	sendErr   error
}

func (f *fakeEVM) Address() string { return sender }

func (f *fakeEVM) SendTransaction(_ context.Context, tx types.EVMTx) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, tx)
	return "0xswap", nil
}

func (f *fakeEVM) Allowance(context.Context, uint64, string, string) (*big.Int, error) {
	if f.allowance == nil {
		return big.NewInt(0), nil
	}
	return f.allowance, nil
}

func (f *fakeEVM) Approve(_ context.Context, _ uint64, token, spender string, _ *big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, token+"->"+spender)
	return "0xapprove", nil
}

func (f *fakeEVM) Transfer(_ context.Context, _ uint64, token, to string, amount *big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, token+"|"+to+"|"+amount.String())
	return "0xdeposit", nil
}

type fakeSolana struct {
	raw [][]byte
}

func (f *fakeSolana) Address() string { return "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM" }

func (f *fakeSolana) SendTransaction(_ context.Context, rawTx []byte) (string, error) {
	f.raw = append(f.raw, rawTx)
	return "5solsig", nil
}

func (f *fakeSolana) Transfer(context.Context, string, string, *big.Int) (string, error) {
	return "5soltransfer", nil
}

type fakeBitcoin struct {
	to   string
	sats *big.Int
}

func (f *fakeBitcoin) Address() string { return "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq" }

func (f *fakeBitcoin) SendToAddress(_ context.Context, to string, sats *big.Int) (string, error) {
	f.to = to
	f.sats = sats
	return "btctxid", nil
}

func big1e18() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}
