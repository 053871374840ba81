// Package category decides the fee tier of a swap from its token pair.
package category

import (
	"context"
	"io"
	"log"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// Fee rates in basis points
const (
	FeeStable         uint32 = 5
	FeeCommon         uint32 = 10
	FeeExotic         uint32 = 15
	FeeHighVolatility uint32 = 25

	FeeCrossFamilyStable uint32 = 10
	FeeCrossFamily       uint32 = 20
	FeeNonEVM            uint32 = 25
	FeeBitcoin           uint32 = 25
)

// Result is the classification of one swap
type Result struct {
	Category types.Category `json:"category"`
	FeeBps   uint32         `json:"feeBps"`
}

// Classifier maps a token pair to a Category and commission rate
type Classifier struct {
	lookup Lookup
	logger *log.Logger
}

// NewClassifier creates a classifier; a nil lookup falls back to SymbolLookup
func NewClassifier(lookup Lookup, logger *log.Logger) *Classifier {
	if lookup == nil {
		lookup = SymbolLookup{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Classifier{lookup: lookup, logger: logger}
}

// Classify computes the pair category and fee. It is a function of the two
// tokens and their chains only.
func (c *Classifier) Classify(ctx context.Context, in, out types.TokenRef) Result {
	inFamily, outFamily := in.Chain.Family(), out.Chain.Family()

	// Bitcoin short-circuits every other rule
	if inFamily == types.FamilyBitcoin || outFamily == types.FamilyBitcoin {
		return Result{Category: types.HighVolatilityPair, FeeBps: FeeBitcoin}
	}

	inEVM, outEVM := in.Chain.IsEVM(), out.Chain.IsEVM()

	switch {
	case inEVM && outEVM:
		if IsCanonicalPair(in, out) {
			return Result{Category: types.StablePair, FeeBps: FeeStable}
		}
		return combine(c.tokenCategory(ctx, in), c.tokenCategory(ctx, out))

	case inEVM != outEVM:
		if c.isStable(ctx, in) && c.isStable(ctx, out) {
			return Result{Category: types.StablePair, FeeBps: FeeCrossFamilyStable}
		}
		return Result{Category: types.CommonPair, FeeBps: FeeCrossFamily}

	default:
		return Result{Category: types.ExoticPair, FeeBps: FeeNonEVM}
	}
}

// combine merges two token categories:
// highVolatility > exotic > stable&stable > common
func combine(a, b types.TokenCategory) Result {
	switch {
	case a == types.TokenHighVolatility || b == types.TokenHighVolatility:
		return Result{Category: types.HighVolatilityPair, FeeBps: FeeHighVolatility}
	case a == types.TokenExotic || b == types.TokenExotic:
		return Result{Category: types.ExoticPair, FeeBps: FeeExotic}
	case a == types.TokenStable && b == types.TokenStable:
		return Result{Category: types.StablePair, FeeBps: FeeStable}
	default:
		return Result{Category: types.CommonPair, FeeBps: FeeCommon}
	}
}

func (c *Classifier) isStable(ctx context.Context, token types.TokenRef) bool {
	if !token.Chain.IsEVM() {
		return isNonEVMStable(token)
	}
	return c.tokenCategory(ctx, token) == types.TokenStable
}

// tokenCategory asks the lookup, treating failures as common
func (c *Classifier) tokenCategory(ctx context.Context, token types.TokenRef) types.TokenCategory {
	category, err := c.lookup.TokenCategory(ctx, token)
	if err != nil {
		c.logger.Printf("category lookup failed for %s (%s), using common: %v", token.Symbol, token.Key(), err)
		return types.TokenCommon
	}
	return category
}
