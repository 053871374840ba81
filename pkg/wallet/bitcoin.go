package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// BitcoinWallet spends from a bitcoind wallet over JSON-RPC
type BitcoinWallet struct {
	config config.BitcoinConfig
	params *chaincfg.Params
	client *rpcclient.Client
}

// NewBitcoinWallet creates a client for the configured bitcoind node
func NewBitcoinWallet(cfg config.BitcoinConfig) (*BitcoinWallet, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("bitcoind host not configured")
	}

	params, err := networkParams(cfg.Network)
	if err != nil {
		return nil, err
	}

	if cfg.Address != "" {
		if _, err := btcutil.DecodeAddress(cfg.Address, params); err != nil {
			return nil, fmt.Errorf("invalid bitcoin address: %w", err)
		}
	}

	host := strings.TrimSuffix(cfg.Host, "/")
	if cfg.Wallet != "" {
		host += "/wallet/" + cfg.Wallet
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   !cfg.TLS,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoind client: %w", err)
	}

	return &BitcoinWallet{config: cfg, params: params, client: client}, nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network: %s", network)
	}
}

// Address implements types.BitcoinSigner
func (b *BitcoinWallet) Address() string {
	return b.config.Address
}

// SendToAddress implements types.BitcoinSigner
func (b *BitcoinWallet) SendToAddress(ctx context.Context, to string, sats *big.Int) (string, error) {
	addr, err := btcutil.DecodeAddress(to, b.params)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	if sats == nil || sats.Sign() <= 0 || !sats.IsInt64() {
		return "", fmt.Errorf("invalid amount: %v", sats)
	}
	amount := btcutil.Amount(sats.Int64())

	if _, err := await(ctx, b.client.GetBlockCountAsync().Receive); err != nil {
		return "", fmt.Errorf("bitcoind not accessible: %w", err)
	}

	balance, err := await(ctx, b.client.GetBalanceAsync("*").Receive)
	if err != nil {
		return "", fmt.Errorf("failed to get wallet balance: %w", err)
	}
	if balance < amount {
		return "", fmt.Errorf("insufficient balance: have %s, need %s", balance, amount)
	}

	hash, err := await(ctx, b.client.SendToAddressAsync(addr, amount).Receive)
	if err != nil {
		return "", fmt.Errorf("sendtoaddress failed: %w", err)
	}
	return hash.String(), nil
}

// Close shuts the RPC client down
func (b *BitcoinWallet) Close() {
	b.client.Shutdown()
}

// await waits for an rpcclient future unless ctx ends first
func await[T any](ctx context.Context, receive func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)
	go func() {
		v, err := receive()
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}

var _ types.BitcoinSigner = (*BitcoinWallet)(nil)
