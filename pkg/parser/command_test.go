package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		input     string
		amount    string
		from      string
		fromChain types.ChainID
		to        string
		toChain   types.ChainID
	}{
		{"swap 1 SOL to USDC on arb", "1", "SOL", types.Solana, "USDC", types.Arbitrum},
		{"1.5 usdc on eth to usdc on base", "1.5", "USDC", types.Ethereum, "USDC", types.Base},
		{"100 USDC@eth to ETH@42161", "100", "USDC", types.Ethereum, "ETH", types.Arbitrum},
		{"  swap   0.01  btc   to  near ", "0.01", "BTC", types.Bitcoin, "NEAR", types.Near},
		{"5 usdc.e on arb to usdc", "5", "USDC", types.Arbitrum, "USDC", types.ChainID{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseSwapCommand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.amount, cmd.Amount.String())
			assert.Equal(t, tt.from, cmd.SourceToken)
			assert.Equal(t, tt.fromChain, cmd.SourceChain)
			assert.Equal(t, tt.to, cmd.DestToken)
			assert.Equal(t, tt.toChain, cmd.DestChain)
		})
	}
}

func TestParseSwapCommand_Invalid(t *testing.T) {
	for _, input := range []string{
		"",
		"swap SOL to USDC",
		"swap 1 SOL USDC",
		"swap -1 SOL to USDC",
		"swap 1 SOL on mars to USDC",
	} {
		_, err := ParseSwapCommand(input)
		assert.Error(t, err, input)
	}
}

func TestSwapCommand_Validate(t *testing.T) {
	cmd, err := ParseSwapCommand("1 USDC on eth to USDC")
	require.NoError(t, err)
	assert.ErrorContains(t, cmd.Validate(), "destination chain is required")

	cmd.DestChain = types.Arbitrum
	assert.NoError(t, cmd.Validate())

	cmd.DestChain = types.Ethereum
	assert.Error(t, cmd.Validate())

	cmd, err = ParseSwapCommand("0 ETH to USDC on arb")
	require.NoError(t, err)
	assert.ErrorContains(t, cmd.Validate(), "positive")
}
