package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Aggregation
	StreamURL        string
	CategoryURL      string
	SameChainAdapter string
	SoftTimeout      time.Duration
	AdapterTimeout   time.Duration
	StreamTimeout    time.Duration
	PollInterval     time.Duration
	SlippageBps      uint32
	ExcludedSources  []string
	IncludedSources  []string
	HistoryPath      string

	// Providers
	KyberSwap KyberSwapConfig
	LiFi      LiFiConfig
	DeBridge  DeBridgeConfig
	OneClick  OneClickConfig

	// Wallets
	Wallet WalletConfig

	ServerAddr string
}

// KyberSwapConfig configures the same-chain aggregator
type KyberSwapConfig struct {
	BaseURL     string
	ClientID    string
	FeeReceiver string
}

// LiFiConfig configures LI.FI
type LiFiConfig struct {
	BaseURL    string
	Integrator string
	APIKey     string
}

// DeBridgeConfig configures deBridge DLN
type DeBridgeConfig struct {
	BaseURL           string
	AffiliateReceiver string
	ReferralCode      string
}

// OneClickConfig configures the NEAR Intents 1Click API
type OneClickConfig struct {
	JWTToken string
	BaseURL  string
	Referral string
}

// WalletConfig holds the signer settings per chain family
type WalletConfig struct {
	EVM     EVMConfig
	Solana  SolanaConfig
	Bitcoin BitcoinConfig
}

// EVMConfig configures the EVM signer. RPC maps chain ids to endpoints.
type EVMConfig struct {
	PrivateKey string
	RPC        map[uint64]string
	GasLimit   *uint64
	GasPrice   *int64
}

// Enabled reports whether an EVM key is configured
func (c EVMConfig) Enabled() bool {
	return c.PrivateKey != ""
}

// SolanaConfig configures the Solana signer
type SolanaConfig struct {
	RPCUrl        string
	PrivateKey    string
	Commitment    string
	SkipPreflight bool
}

// Enabled reports whether a Solana key is configured
func (c SolanaConfig) Enabled() bool {
	return c.PrivateKey != ""
}

// BitcoinConfig configures the bitcoind wallet used for deposits
type BitcoinConfig struct {
	Host    string
	User    string
	Pass    string
	Wallet  string
	Address string
	Network string
	TLS     bool
}

// Enabled reports whether a bitcoind endpoint is configured
func (c BitcoinConfig) Enabled() bool {
	return c.Host != ""
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".kyberswap-xchain")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults(viper.GetViper())

	// Read from environment variables
	viper.SetEnvPrefix("XCHAIN_SWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg, err := fromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("soft_timeout", "4s")
	v.SetDefault("adapter_timeout", "9s")
	v.SetDefault("stream_timeout", "30s")
	v.SetDefault("poll_interval", "5s")
	v.SetDefault("slippage_bps", 50)
	v.SetDefault("same_chain_adapter", "kyberswap")
	v.SetDefault("history_path", defaultHistoryPath())
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("bitcoin.network", "mainnet")
	v.SetDefault("server.addr", ":8080")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		StreamURL:        v.GetString("stream_url"),
		CategoryURL:      v.GetString("category_url"),
		SameChainAdapter: v.GetString("same_chain_adapter"),
		SoftTimeout:      v.GetDuration("soft_timeout"),
		AdapterTimeout:   v.GetDuration("adapter_timeout"),
		StreamTimeout:    v.GetDuration("stream_timeout"),
		PollInterval:     v.GetDuration("poll_interval"),
		SlippageBps:      v.GetUint32("slippage_bps"),
		ExcludedSources:  splitList(v.GetStringSlice("excluded_sources")),
		IncludedSources:  splitList(v.GetStringSlice("included_sources")),
		HistoryPath:      v.GetString("history_path"),
		KyberSwap: KyberSwapConfig{
			BaseURL:     v.GetString("kyberswap.base_url"),
			ClientID:    v.GetString("kyberswap.client_id"),
			FeeReceiver: v.GetString("kyberswap.fee_receiver"),
		},
		LiFi: LiFiConfig{
			BaseURL:    v.GetString("lifi.base_url"),
			Integrator: v.GetString("lifi.integrator"),
			APIKey:     v.GetString("lifi.api_key"),
		},
		DeBridge: DeBridgeConfig{
			BaseURL:           v.GetString("debridge.base_url"),
			AffiliateReceiver: v.GetString("debridge.affiliate_receiver"),
			ReferralCode:      v.GetString("debridge.referral_code"),
		},
		OneClick: OneClickConfig{
			JWTToken: v.GetString("oneclick.jwt_token"),
			BaseURL:  v.GetString("oneclick.base_url"),
			Referral: v.GetString("oneclick.referral"),
		},
		Wallet: WalletConfig{
			EVM: EVMConfig{
				PrivateKey: v.GetString("evm.private_key"),
			},
			Solana: SolanaConfig{
				RPCUrl:        v.GetString("solana.rpc_url"),
				PrivateKey:    v.GetString("solana.private_key"),
				Commitment:    v.GetString("solana.commitment"),
				SkipPreflight: v.GetBool("solana.skip_preflight"),
			},
			Bitcoin: BitcoinConfig{
				Host:    v.GetString("bitcoin.host"),
				User:    v.GetString("bitcoin.user"),
				Pass:    v.GetString("bitcoin.pass"),
				Wallet:  v.GetString("bitcoin.wallet"),
				Address: v.GetString("bitcoin.address"),
				Network: v.GetString("bitcoin.network"),
				TLS:     v.GetBool("bitcoin.tls"),
			},
		},
		ServerAddr: v.GetString("server.addr"),
	}

	rpc, err := parseRPC(v.GetStringMapString("evm.rpc"))
	if err != nil {
		return nil, err
	}
	cfg.Wallet.EVM.RPC = rpc

	if v.IsSet("evm.gas_limit") {
		limit := v.GetUint64("evm.gas_limit")
		cfg.Wallet.EVM.GasLimit = &limit
	}
	if v.IsSet("evm.gas_price") {
		price := v.GetInt64("evm.gas_price")
		cfg.Wallet.EVM.GasPrice = &price
	}

	if cfg.SoftTimeout <= 0 || cfg.AdapterTimeout <= 0 || cfg.StreamTimeout <= 0 || cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("timeouts and poll_interval must be positive durations")
	}
	if cfg.SlippageBps > 10000 {
		return nil, fmt.Errorf("slippage_bps must be at most 10000")
	}

	return cfg, nil
}

// parseRPC converts the evm.rpc section, keyed by chain id, into a map
func parseRPC(raw map[string]string) (map[uint64]string, error) {
	out := make(map[uint64]string, len(raw))
	for key, url := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("evm.rpc key '%s' is not a chain id", key)
		}
		out[id] = url
	}
	return out, nil
}

// splitList accepts both YAML lists and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kyberswap-xchain/history.json"
	}
	return home + "/.kyberswap-xchain/history.json"
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
