package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// QuoteRequest is the normalized input of one aggregation round. It is
// treated as immutable once handed to the orchestrator.
type QuoteRequest struct {
	FromChain   ChainID  `json:"fromChain"`
	ToChain     ChainID  `json:"toChain"`
	FromToken   TokenRef `json:"fromToken"`
	ToToken     TokenRef `json:"toToken"`
	Amount      string   `json:"amount"` // integer, smallest unit of FromToken
	Sender      string   `json:"sender"`
	Recipient   string   `json:"recipient"`
	SlippageBps uint32   `json:"slippageBps"`
	FeeBps      uint32   `json:"feeBps"`
	Category    Category `json:"category,omitempty"`
	TokenInUSD  float64  `json:"tokenInUsd"`
	TokenOutUSD float64  `json:"tokenOutUsd"`
	PublicKey   string   `json:"publicKey,omitempty"`
	Wallet      *Wallet  `json:"-"`
}

// AmountInt parses Amount
func (r QuoteRequest) AmountInt() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("amount '%s' is not an integer", r.Amount)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

// SameChainEVM reports whether the request swaps within a single EVM chain
func (r QuoteRequest) SameChainEVM() bool {
	return r.FromChain == r.ToChain && r.FromChain.IsEVM()
}

// Families returns the distinct chain families the request touches
func (r QuoteRequest) Families() []ChainFamily {
	if r.FromChain.Family() == r.ToChain.Family() {
		return []ChainFamily{r.FromChain.Family()}
	}
	return []ChainFamily{r.FromChain.Family(), r.ToChain.Family()}
}

// NormalizedQuote is one provider's answer to a QuoteRequest in a
// provider-independent shape.
type NormalizedQuote struct {
	OutputAmount          *big.Int     `json:"outputAmount"`
	FormattedOutputAmount string       `json:"formattedOutputAmount"`
	InputUSD              float64      `json:"inputUsd"`
	OutputUSD             float64      `json:"outputUsd"`
	Rate                  float64      `json:"rate"`
	TimeEstimateSeconds   float64      `json:"timeEstimateSeconds"`
	PriceImpactPercent    float64      `json:"priceImpactPercent"` // NaN when unknown
	GasFeeUSD             float64      `json:"gasFeeUsd"`
	ProtocolFee           float64      `json:"protocolFee"` // USD
	ProtocolFeeDisplay    string       `json:"protocolFeeDisplay,omitempty"`
	PlatformFeePercent    float64      `json:"platformFeePercent"`
	ContractAddress       string       `json:"contractAddress"`
	RawQuote              any          `json:"-"`
	Request               QuoteRequest `json:"-"`
}

// FormatUnits renders an integer amount of token in human units
func FormatUnits(amount *big.Int, token TokenRef) string {
	if amount == nil {
		return "0"
	}
	return token.FromUnits(decimal.NewFromBigInt(amount, 0)).String()
}

// ComputeRate returns output/input in human units, or 0 when input is zero
func ComputeRate(input, output *big.Int, in, out TokenRef) float64 {
	if input == nil || output == nil || input.Sign() == 0 {
		return 0
	}
	inHuman := in.FromUnits(decimal.NewFromBigInt(input, 0))
	outHuman := out.FromUnits(decimal.NewFromBigInt(output, 0))
	rate, _ := outHuman.Div(inHuman).Float64()
	return rate
}
