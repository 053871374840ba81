package types

// Category is the fee tier of a token pair
type Category string

const (
	StablePair         Category = "stablePair"
	CommonPair         Category = "commonPair"
	HighVolatilityPair Category = "highVolatilityPair"
	ExoticPair         Category = "exoticPair"
)

// TokenCategory is the classification of a single token
type TokenCategory string

const (
	TokenStable         TokenCategory = "stable"
	TokenCommon         TokenCategory = "common"
	TokenExotic         TokenCategory = "exotic"
	TokenHighVolatility TokenCategory = "highVolatility"
)

// Valid reports whether c is a known token category
func (c TokenCategory) Valid() bool {
	switch c {
	case TokenStable, TokenCommon, TokenExotic, TokenHighVolatility:
		return true
	default:
		return false
	}
}
