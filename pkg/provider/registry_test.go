package provider_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider/stub"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

func TestNewRegistry(t *testing.T) {
	a := stub.New("Across", 1, types.Ethereum)
	b := stub.New("lifi", 1, types.Ethereum)

	reg, err := provider.NewRegistry(a, b)
	require.NoError(t, err)

	got, ok := reg.Get("ACROSS")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = reg.Get("relay")
	assert.False(t, ok)

	assert.Equal(t, []string{"Across", "lifi"}, reg.Names())
	assert.Len(t, reg.All(), 2)
}

func TestNewRegistry_DuplicateNames(t *testing.T) {
	_, err := provider.NewRegistry(
		stub.New("LiFi", 1, types.Ethereum),
		stub.New("lifi", 1, types.Ethereum),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRegistry_Empty(t *testing.T) {
	_, err := provider.NewRegistry()
	assert.Error(t, err)
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	reg, err := provider.NewRegistry(stub.New("a", 1, types.Ethereum))
	require.NoError(t, err)

	all := reg.All()
	all[0] = nil

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.NotNil(t, reg.All()[0])
}

func TestSupportsRequest(t *testing.T) {
	a := stub.New("a", 1, types.Ethereum, types.Solana)

	assert.True(t, provider.SupportsRequest(a, types.QuoteRequest{FromChain: types.Ethereum, ToChain: types.Solana}))
	assert.False(t, provider.SupportsRequest(a, types.QuoteRequest{FromChain: types.Ethereum, ToChain: types.Bitcoin}))
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", provider.ErrNoRoute), "no_route"},
		{provider.ErrUnsupportedCategory, "unsupported"},
		{provider.ErrTimeout, "timeout"},
		{provider.Upstream("lifi", "quote", errors.New("boom")), "upstream"},
		{errors.New("other"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, provider.Reason(tt.err))
	}
}

func TestSubmission_PassesThroughRejection(t *testing.T) {
	err := provider.Submission("lifi", "swap", fmt.Errorf("sign: %w", provider.ErrUserRejected))
	assert.ErrorIs(t, err, provider.ErrUserRejected)

	var sub *provider.SubmissionError
	assert.False(t, errors.As(err, &sub))

	err = provider.Submission("lifi", "swap", errors.New("nonce too low"))
	require.True(t, errors.As(err, &sub))
	assert.Equal(t, "swap", sub.Step)
}
