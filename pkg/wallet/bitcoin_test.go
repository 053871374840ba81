package wallet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
)

const (
	testBTCAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	testTxID       = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

type fakeBitcoind struct {
	mu      sync.Mutex
	balance float64
	calls   []rpcRequest
	paths   []string
}

func (f *fakeBitcoind) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	var result interface{}
	switch req.Method {
	case "getblockcount":
		result = 850000
	case "getbalance":
		result = f.balance
	case "sendtoaddress":
		result = testTxID
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result": result,
		"error":  nil,
		"id":     req.ID,
	})
}

func newTestBitcoinWallet(t *testing.T, cfg config.BitcoinConfig) (*BitcoinWallet, *fakeBitcoind) {
	t.Helper()
	node := &fakeBitcoind{}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	cfg.Host = strings.TrimPrefix(srv.URL, "http://")
	w, err := NewBitcoinWallet(cfg)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w, node
}

func TestBitcoinWallet_SendToAddress(t *testing.T) {
	w, node := newTestBitcoinWallet(t, config.BitcoinConfig{Address: testBTCAddress, Wallet: "deposits"})
	node.balance = 0.5

	txid, err := w.SendToAddress(context.Background(), testBTCAddress, big.NewInt(100000))
	require.NoError(t, err)
	assert.Equal(t, testTxID, txid)
	assert.Equal(t, testBTCAddress, w.Address())

	require.Len(t, node.calls, 3)
	assert.Equal(t, "getblockcount", node.calls[0].Method)
	assert.Equal(t, "getbalance", node.calls[1].Method)

	send := node.calls[2]
	assert.Equal(t, "sendtoaddress", send.Method)
	require.GreaterOrEqual(t, len(send.Params), 2)
	assert.JSONEq(t, `"`+testBTCAddress+`"`, string(send.Params[0]))
	assert.JSONEq(t, `0.001`, string(send.Params[1]))

	assert.Equal(t, "/wallet/deposits", node.paths[0])
}

func TestBitcoinWallet_InsufficientBalance(t *testing.T) {
	w, node := newTestBitcoinWallet(t, config.BitcoinConfig{})
	node.balance = 0.0001

	_, err := w.SendToAddress(context.Background(), testBTCAddress, big.NewInt(100000))
	assert.ErrorContains(t, err, "insufficient balance")
	assert.Len(t, node.calls, 2)
}

func TestBitcoinWallet_InvalidInputs(t *testing.T) {
	w, node := newTestBitcoinWallet(t, config.BitcoinConfig{})

	_, err := w.SendToAddress(context.Background(), "not-an-address", big.NewInt(1000))
	assert.Error(t, err)

	_, err = w.SendToAddress(context.Background(), testBTCAddress, big.NewInt(0))
	assert.Error(t, err)
	assert.Empty(t, node.calls)

	_, err = NewBitcoinWallet(config.BitcoinConfig{Host: "127.0.0.1:8332", Network: "dogecoin"})
	assert.Error(t, err)

	_, err = NewBitcoinWallet(config.BitcoinConfig{Host: "127.0.0.1:8332", Network: "regtest", Address: testBTCAddress})
	assert.Error(t, err, "mainnet address on regtest")
}
