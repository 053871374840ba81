package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/KyberNetwork/kyberswap-interface-sub001/config"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Solana fees are 5000 lamports per signature
const lamportsPerSignature = 5000

// solanaRPC is the subset of rpc.Client the wallet uses
type solanaRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// SolanaWallet signs for one Solana account
type SolanaWallet struct {
	config     config.SolanaConfig
	client     solanaRPC
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSolanaWallet creates a new Solana wallet
func NewSolanaWallet(cfg config.SolanaConfig) (*SolanaWallet, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}

	// Parse private key (Base58 encoded)
	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &SolanaWallet{
		config:     cfg,
		client:     rpc.New(cfg.RPCUrl),
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
	}, nil
}

// Address implements types.SolanaSender
func (s *SolanaWallet) Address() string {
	return s.publicKey.String()
}

// SendTransaction signs a serialized transaction built by a provider and
// submits it. Signatures already present for other signers are kept.
func (s *SolanaWallet) SendTransaction(ctx context.Context, rawTx []byte) (string, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	if err := s.signSlot(tx); err != nil {
		return "", err
	}

	sig, err := s.submit(ctx, tx)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// signSlot places our signature at our index among the required signers
func (s *SolanaWallet) signSlot(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)

	index := -1
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(s.publicKey) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("transaction does not require a signature from %s", s.publicKey)
	}

	payload, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	sig, err := s.privateKey.Sign(payload)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[index] = sig
	return nil
}

// Transfer implements types.SolanaSender. An empty mint sends SOL.
func (s *SolanaWallet) Transfer(ctx context.Context, to, mint string, amount *big.Int) (string, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}
	if amount == nil || amount.Sign() <= 0 || !amount.IsUint64() {
		return "", fmt.Errorf("invalid amount: %v", amount)
	}

	var instructions []solana.Instruction
	if mint == "" {
		instructions, err = s.nativeTransfer(ctx, recipient, amount.Uint64())
	} else {
		instructions, err = s.tokenTransfer(ctx, recipient, mint, amount.Uint64())
	}
	if err != nil {
		return "", err
	}

	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(s.publicKey))
	if err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.submit(ctx, tx)
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (s *SolanaWallet) nativeTransfer(ctx context.Context, recipient solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	// Check if we have enough balance (including for fees)
	minRequired := lamports + lamportsPerSignature
	if balance.Value < minRequired {
		return nil, fmt.Errorf("insufficient balance: have %d lamports, need %d lamports (including fees)", balance.Value, minRequired)
	}

	return []solana.Instruction{
		system.NewTransferInstruction(lamports, s.publicKey, recipient).Build(),
	}, nil
}

func (s *SolanaWallet) tokenTransfer(ctx context.Context, recipient solana.PublicKey, mintStr string, units uint64) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %w", err)
	}

	source, _, err := solana.FindAssociatedTokenAddress(s.publicKey, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}

	balance, err := s.client.GetTokenAccountBalance(ctx, source, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	have, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token balance: %w", err)
	}
	if have < units {
		return nil, fmt.Errorf("insufficient token balance: have %d, need %d", have, units)
	}

	dest, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	exists, err := s.accountExists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination account: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(s.publicKey, recipient, mint).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(
		units,
		source,
		dest,
		s.publicKey,
		[]solana.PublicKey{}, // no multisig
	).Build())

	return instructions, nil
}

func (s *SolanaWallet) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) || strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return info.Value != nil, nil
}

func (s *SolanaWallet) submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.commitment(),
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// commitment returns the commitment level from config
func (s *SolanaWallet) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}

var _ types.SolanaSender = (*SolanaWallet)(nil)
