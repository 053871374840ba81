package executor

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/history"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider/stub"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

var (
	ethereum = types.EVMChain(1)
	arbitrum = types.EVMChain(42161)
	fixedNow = time.UnixMilli(1_700_000_000_000)
)

type fakeEVM struct{}

func (fakeEVM) Address() string { return "0x1111111111111111111111111111111111111111" }
func (fakeEVM) SendTransaction(context.Context, types.EVMTx) (string, error) {
	return "0xhash", nil
}
func (fakeEVM) Allowance(context.Context, uint64, string, string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (fakeEVM) Approve(context.Context, uint64, string, string, *big.Int) (string, error) {
	return "0xapprove", nil
}
func (fakeEVM) Transfer(context.Context, uint64, string, string, *big.Int) (string, error) {
	return "0xtransfer", nil
}

type fakeBitcoin struct{}

func (fakeBitcoin) Address() string { return "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq" }
func (fakeBitcoin) SendToAddress(context.Context, string, *big.Int) (string, error) {
	return "btctx", nil
}

type fakeSolana struct{}

func (fakeSolana) Address() string { return "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM" }
func (fakeSolana) SendTransaction(context.Context, []byte) (string, error) {
	return "solsig", nil
}
func (fakeSolana) Transfer(context.Context, string, string, *big.Int) (string, error) {
	return "solsig", nil
}

func request() types.QuoteRequest {
	return types.QuoteRequest{
		FromChain:   ethereum,
		ToChain:     arbitrum,
		FromToken:   types.TokenRef{Chain: ethereum, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Decimals: 6},
		ToToken:     types.TokenRef{Chain: arbitrum, Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Symbol: "USDC", Decimals: 6},
		Amount:      "1000000",
		Sender:      "0x1111111111111111111111111111111111111111",
		Recipient:   "0x1111111111111111111111111111111111111111",
		SlippageBps: 50,
		FeeBps:      5,
	}
}

func quoteFor(a *stub.Adapter) provider.Quote {
	req := request()
	return provider.Quote{
		Normalized: types.NormalizedQuote{
			OutputAmount:       big.NewInt(a.Output),
			InputUSD:           1,
			OutputUSD:          0.995,
			PlatformFeePercent: 0.05,
			Request:            req,
		},
		Adapter: a,
	}
}

type harness struct {
	adapter *stub.Adapter
	store   *history.Store
	reg     *prometheus.Registry
	opts    Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	a := stub.New("lifi", 995000, ethereum, arbitrum)
	registry, err := provider.NewRegistry(a)
	require.NoError(t, err)

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return &harness{
		adapter: a,
		store:   store,
		reg:     reg,
		opts: Options{
			Registry:     registry,
			Store:        store,
			PollInterval: 5 * time.Millisecond,
			Metrics:      NewMetrics("test", reg),
			Now:          func() time.Time { return fixedNow },
		},
	}
}

func TestExecute_RequiresSourceSigner(t *testing.T) {
	h := newHarness(t)
	d := NewDispatcher(h.opts)

	_, err := d.Execute(context.Background(), quoteFor(h.adapter), types.Wallet{Bitcoin: fakeBitcoin{}})
	assert.ErrorIs(t, err, provider.ErrWalletNotConnected)
	assert.Empty(t, h.adapter.Wallets(), "adapter never called")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.opts.Metrics.ExecutionsTotal.WithLabelValues("lifi", "wallet")))
}

func TestExecute_PassesOnlyNeededSigners(t *testing.T) {
	h := newHarness(t)
	h.adapter.Aux = []types.ChainFamily{types.FamilyBitcoin}
	d := NewDispatcher(h.opts)

	wallet := types.Wallet{EVM: fakeEVM{}, Solana: fakeSolana{}, Bitcoin: fakeBitcoin{}}
	_, err := d.Execute(context.Background(), quoteFor(h.adapter), wallet)
	require.NoError(t, err)

	got := h.adapter.Wallets()
	require.Len(t, got, 1)
	assert.True(t, got[0].Connected(types.FamilyEVM))
	assert.True(t, got[0].Connected(types.FamilyBitcoin))
	assert.False(t, got[0].Connected(types.FamilySolana))
}

func TestExecute_EnrichesAndSaves(t *testing.T) {
	h := newHarness(t)
	d := NewDispatcher(h.opts)

	result, err := d.Execute(context.Background(), quoteFor(h.adapter), types.Wallet{EVM: fakeEVM{}})
	require.NoError(t, err)

	_, err = uuid.Parse(result.ID)
	assert.NoError(t, err)
	assert.Equal(t, "lifi", result.AdapterName)
	assert.Equal(t, "0xlifi", result.SourceTxHash)
	assert.Equal(t, 1.0, result.InputUSD)
	assert.Equal(t, 0.995, result.OutputUSD)
	assert.Equal(t, 0.05, result.PlatformFeePercent)
	assert.Equal(t, fixedNow.UnixMilli(), result.TimestampMs)
	assert.Equal(t, types.StatusProcessing, result.Status)

	stored, err := h.store.Get(result.ID)
	require.NoError(t, err)
	assert.Equal(t, *result, stored)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.opts.Metrics.ExecutionsTotal.WithLabelValues("lifi", "submitted")))
}

func TestExecute_ReturnsAdapterErrorsVerbatim(t *testing.T) {
	h := newHarness(t)
	h.adapter.ExecErr = provider.ErrUserRejected
	d := NewDispatcher(h.opts)

	_, err := d.Execute(context.Background(), quoteFor(h.adapter), types.Wallet{EVM: fakeEVM{}})
	assert.Equal(t, provider.ErrUserRejected, err)
	assert.Empty(t, h.store.List())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.opts.Metrics.ExecutionsTotal.WithLabelValues("lifi", "rejected")))

	_, err = d.Execute(context.Background(), provider.Quote{}, types.Wallet{EVM: fakeEVM{}})
	assert.Error(t, err)
}

func TestExecute_NilResultIsAnError(t *testing.T) {
	h := newHarness(t)
	h.adapter.NilResult = true
	d := NewDispatcher(h.opts)

	result, err := d.Execute(context.Background(), quoteFor(h.adapter), types.Wallet{EVM: fakeEVM{}})
	assert.ErrorContains(t, err, "no transaction result")
	assert.Nil(t, result)
	assert.Empty(t, h.store.List())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.opts.Metrics.ExecutionsTotal.WithLabelValues("lifi", "error")))
}

func TestCheck_EmptyStatusIsAnError(t *testing.T) {
	h := newHarness(t)
	h.adapter.Statuses = []stub.StatusResult{{Empty: true}, {Status: types.StatusSuccess, Hash: "0xdst"}}
	poller, err := NewPoller(h.opts)
	require.NoError(t, err)

	tx := types.TxResult{ID: "x", AdapterName: "lifi", Status: types.StatusProcessing}
	got, err := poller.Check(context.Background(), tx)
	var upErr *provider.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, tx, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.opts.Metrics.StatusChecks.WithLabelValues("lifi", "error")))

	// Poll treats it like any failed check and keeps going
	final, err := poller.Poll(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, final.Status)
}

func TestPoll_RetriesUntilTerminal(t *testing.T) {
	h := newHarness(t)
	h.adapter.Statuses = []stub.StatusResult{
		{Err: provider.Upstream("lifi", "status", errors.New("bad gateway"))},
		{Status: types.StatusProcessing},
		{Status: types.StatusSuccess, Hash: "0xdst"},
	}

	tx, err := NewDispatcher(h.opts).Execute(context.Background(), quoteFor(h.adapter), types.Wallet{EVM: fakeEVM{}})
	require.NoError(t, err)

	poller, err := NewPoller(h.opts)
	require.NoError(t, err)

	var seen []types.SwapState
	final, err := poller.Poll(context.Background(), *tx, func(u types.TxResult) {
		seen = append(seen, u.Status)
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusSuccess, final.Status)
	assert.Equal(t, "0xdst", final.TargetTxHash)
	assert.Equal(t, 3, h.adapter.StatusCalls())
	assert.Equal(t, []types.SwapState{types.StatusProcessing, types.StatusSuccess}, seen)

	stored, err := h.store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, stored.Status)
	assert.Equal(t, "0xdst", stored.TargetTxHash)
}

func TestPoll_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	poller, err := NewPoller(h.opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	tx := types.TxResult{ID: "x", AdapterName: "lifi", Status: types.StatusProcessing}
	final, err := poller.Poll(ctx, tx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.StatusProcessing, final.Status)
	assert.GreaterOrEqual(t, h.adapter.StatusCalls(), 1)
}

func TestPoll_TerminalIsNoop(t *testing.T) {
	h := newHarness(t)
	poller, err := NewPoller(h.opts)
	require.NoError(t, err)

	tx := types.TxResult{ID: "x", AdapterName: "lifi", Status: types.StatusRefunded}
	final, err := poller.Poll(context.Background(), tx, nil)
	require.NoError(t, err)
	assert.Equal(t, tx, final)
	assert.Zero(t, h.adapter.StatusCalls())
}

func TestRefresh_ChecksPendingOnce(t *testing.T) {
	h := newHarness(t)
	h.adapter.Statuses = []stub.StatusResult{{Status: types.StatusFailed}}
	d := NewDispatcher(h.opts)

	tx, err := d.Execute(context.Background(), quoteFor(h.adapter), types.Wallet{EVM: fakeEVM{}})
	require.NoError(t, err)

	done := *tx
	done.ID = "settled"
	done.Status = types.StatusSuccess
	require.NoError(t, h.store.Save(done))

	orphan := *tx
	orphan.ID = "orphan"
	orphan.AdapterName = "retired"
	require.NoError(t, h.store.Save(orphan))

	poller, err := NewPoller(h.opts)
	require.NoError(t, err)

	updated, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, tx.ID, updated[0].ID)
	assert.Equal(t, types.StatusFailed, updated[0].Status)
	assert.Equal(t, 1, h.adapter.StatusCalls())

	// A second pass finds only the orphan still pending
	updated, err = poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Equal(t, 1, h.adapter.StatusCalls())
}

func TestNewPoller_RequiresRegistry(t *testing.T) {
	_, err := NewPoller(Options{})
	assert.Error(t, err)
}
