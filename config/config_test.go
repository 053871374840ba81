package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return fromViper(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.SoftTimeout)
	assert.Equal(t, 9*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 30*time.Second, cfg.StreamTimeout)
	assert.Equal(t, uint32(50), cfg.SlippageBps)
	assert.Equal(t, "kyberswap", cfg.SameChainAdapter)
	assert.False(t, cfg.Wallet.EVM.Enabled())
	assert.False(t, cfg.Wallet.Bitcoin.Enabled())
	assert.Nil(t, cfg.Wallet.EVM.GasLimit)
}

func TestFromYAML(t *testing.T) {
	cfg, err := load(t, `
stream_url: https://agg.example.com/api/v1/quotes
soft_timeout: 2s
excluded_sources: ["lifi", "debridge,near-intents"]
kyberswap:
  client_id: xchain
evm:
  private_key: "0xabc"
  gas_limit: 300000
  rpc:
    "1": https://eth.example.com
    "42161": https://arb.example.com
bitcoin:
  host: 127.0.0.1:8332
  address: bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq
`)
	require.NoError(t, err)

	assert.Equal(t, "https://agg.example.com/api/v1/quotes", cfg.StreamURL)
	assert.Equal(t, 2*time.Second, cfg.SoftTimeout)
	assert.Equal(t, []string{"lifi", "debridge", "near-intents"}, cfg.ExcludedSources)
	assert.Equal(t, "xchain", cfg.KyberSwap.ClientID)
	assert.Equal(t, map[uint64]string{1: "https://eth.example.com", 42161: "https://arb.example.com"}, cfg.Wallet.EVM.RPC)
	require.NotNil(t, cfg.Wallet.EVM.GasLimit)
	assert.Equal(t, uint64(300000), *cfg.Wallet.EVM.GasLimit)
	assert.True(t, cfg.Wallet.EVM.Enabled())
	assert.True(t, cfg.Wallet.Bitcoin.Enabled())
}

func TestInvalidValues(t *testing.T) {
	_, err := load(t, "evm:\n  rpc:\n    mainnet: https://eth.example.com\n")
	assert.Error(t, err)

	_, err = load(t, "slippage_bps: 20000\n")
	assert.Error(t, err)

	_, err = load(t, "poll_interval: 0s\n")
	assert.Error(t, err)
}
