package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// ERC20 functions used for deposits and approvals
const erc20ABI = `[
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

var parsedERC20 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
	return parsed
}()

const receiptPollInterval = 2 * time.Second

// evmBackend is the subset of ethclient.Client the signer uses
type evmBackend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.PendingStateReader
	ethereum.TransactionSender
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// EVMWallet signs for one account on every configured EVM chain
type EVMWallet struct {
	config     config.EVMConfig
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu      sync.Mutex
	clients map[uint64]evmBackend
	dial    func(rawURL string) (evmBackend, error)
}

// NewEVMWallet parses the configured key. RPC connections are opened lazily
// per chain.
func NewEVMWallet(cfg config.EVMConfig) (*EVMWallet, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for EVM")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &EVMWallet{
		config:     cfg,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		clients:    make(map[uint64]evmBackend),
		dial: func(rawURL string) (evmBackend, error) {
			return ethclient.Dial(rawURL)
		},
	}, nil
}

// Address implements types.EVMSigner
func (e *EVMWallet) Address() string {
	return e.address.Hex()
}

func (e *EVMWallet) client(chainID uint64) (evmBackend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[chainID]; ok {
		return c, nil
	}

	rpcURL, ok := e.config.RPC[chainID]
	if !ok || rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", chainID)
	}

	c, err := e.dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	e.clients[chainID] = c
	return c, nil
}

// SendTransaction signs and broadcasts tx, returning its hash
func (e *EVMWallet) SendTransaction(ctx context.Context, tx types.EVMTx) (string, error) {
	signed, err := e.send(ctx, tx)
	if err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

func (e *EVMWallet) send(ctx context.Context, tx types.EVMTx) (*ethtypes.Transaction, error) {
	if !common.IsHexAddress(tx.To) {
		return nil, fmt.Errorf("invalid destination address: %s", tx.To)
	}

	client, err := e.client(tx.ChainID)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(tx.To)
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}

	// Get nonce
	nonce, err := client.PendingNonceAt(ctx, e.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	// Get gas price
	gasPrice, err := e.getGasPrice(ctx, client)
	if err != nil {
		return nil, err
	}

	gasLimit := tx.Gas
	if gasLimit == 0 {
		gasLimit, err = e.estimateGas(ctx, client, ethereum.CallMsg{
			From:  e.address,
			To:    &to,
			Value: value,
			Data:  tx.Data,
		})
		if err != nil {
			return nil, err
		}
	}

	unsigned := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     tx.Data,
	})

	// Sign transaction
	signed, err := ethtypes.SignTx(unsigned, ethtypes.LatestSignerForChainID(new(big.Int).SetUint64(tx.ChainID)), e.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	// Send transaction
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signed, nil
}

// Allowance implements types.EVMSigner
func (e *EVMWallet) Allowance(ctx context.Context, chainID uint64, token, spender string) (*big.Int, error) {
	client, err := e.client(chainID)
	if err != nil {
		return nil, err
	}

	data, err := parsedERC20.Pack("allowance", e.address, common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	return e.callUint(ctx, client, common.HexToAddress(token), data)
}

// Approve implements types.EVMSigner and waits for the approval to be mined
func (e *EVMWallet) Approve(ctx context.Context, chainID uint64, token, spender string, amount *big.Int) (string, error) {
	data, err := parsedERC20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack approve data: %w", err)
	}

	signed, err := e.send(ctx, types.EVMTx{ChainID: chainID, To: token, Data: data})
	if err != nil {
		return "", err
	}

	client, err := e.client(chainID)
	if err != nil {
		return "", err
	}
	receipt, err := waitMined(ctx, client, signed.Hash())
	if err != nil {
		return "", err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return "", fmt.Errorf("approval %s reverted", signed.Hash().Hex())
	}
	return signed.Hash().Hex(), nil
}

// Transfer implements types.EVMSigner. An empty token sends the native coin.
func (e *EVMWallet) Transfer(ctx context.Context, chainID uint64, token, to string, amount *big.Int) (string, error) {
	// Validate recipient address
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}

	client, err := e.client(chainID)
	if err != nil {
		return "", err
	}

	if token == "" {
		balance, err := client.BalanceAt(ctx, e.address, nil)
		if err != nil {
			return "", fmt.Errorf("failed to get balance: %w", err)
		}
		if balance.Cmp(amount) < 0 {
			return "", fmt.Errorf("insufficient balance: have %s wei, need %s wei", balance.String(), amount.String())
		}

		gas := uint64(21000) // Standard ETH transfer
		if e.config.GasLimit != nil {
			gas = *e.config.GasLimit
		}
		return e.SendTransaction(ctx, types.EVMTx{ChainID: chainID, To: to, Value: amount, Gas: gas})
	}

	if !common.IsHexAddress(token) {
		return "", fmt.Errorf("invalid token contract address: %s", token)
	}

	balance, err := e.erc20Balance(ctx, client, common.HexToAddress(token))
	if err != nil {
		return "", fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return "", fmt.Errorf("insufficient token balance: have %s, need %s", balance.String(), amount.String())
	}

	data, err := parsedERC20.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer data: %w", err)
	}

	var gas uint64
	if e.config.GasLimit != nil {
		gas = *e.config.GasLimit
	}
	return e.SendTransaction(ctx, types.EVMTx{ChainID: chainID, To: token, Data: data, Gas: gas})
}

// getGasPrice returns the gas price to use for transactions
func (e *EVMWallet) getGasPrice(ctx context.Context, client evmBackend) (*big.Int, error) {
	// Use configured gas price if available
	if e.config.GasPrice != nil {
		return big.NewInt(*e.config.GasPrice), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (e *EVMWallet) estimateGas(ctx context.Context, client evmBackend, msg ethereum.CallMsg) (uint64, error) {
	if e.config.GasLimit != nil {
		return *e.config.GasLimit, nil
	}
	estimated, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return estimated * 120 / 100, nil // Add 20% buffer
}

func (e *EVMWallet) erc20Balance(ctx context.Context, client evmBackend, token common.Address) (*big.Int, error) {
	data, err := parsedERC20.Pack("balanceOf", e.address)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}
	return e.callUint(ctx, client, token, data)
}

func (e *EVMWallet) callUint(ctx context.Context, client evmBackend, contract common.Address, data []byte) (*big.Int, error) {
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", contract.Hex(), err)
	}
	return new(big.Int).SetBytes(result), nil
}

// waitMined polls for the receipt of hash until ctx ends
func waitMined(ctx context.Context, client evmBackend, hash common.Hash) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

var _ types.EVMSigner = (*EVMWallet)(nil)
