package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// upstream wraps err as a provider.UpstreamError, keeping the HTTP status
func upstream(name, op string, err error) error {
	var ue *provider.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	out := &provider.UpstreamError{Provider: name, Op: op, Err: err}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		out.Status = statusErr.Status
	}
	return out
}

// statusOf returns the HTTP status carried by err, or 0
func statusOf(err error) int {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}

// parseBig parses a decimal or 0x-prefixed integer
func parseBig(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeBig(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex integer '%s': %w", s, err)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer '%s'", s)
	}
	return v, nil
}

// parseFloat parses a provider's numeric string, returning 0 on junk
func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// usdValue prices an integer amount of token at priceUSD
func usdValue(amount *big.Int, token types.TokenRef, priceUSD float64) float64 {
	if amount == nil || priceUSD <= 0 || math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) {
		return 0
	}
	human := token.FromUnits(decimal.NewFromBigInt(amount, 0))
	v, _ := human.Mul(decimal.NewFromFloat(priceUSD)).Float64()
	return v
}

// priceImpact returns the percentage lost between the USD legs, NaN when unknown
func priceImpact(inUSD, outUSD float64) float64 {
	if inUSD <= 0 || outUSD <= 0 {
		return math.NaN()
	}
	return (inUSD - outUSD) / inUSD * 100
}

// feePercent converts basis points to a percentage
func feePercent(bps uint32) float64 {
	return float64(bps) / 100
}

// finishQuote fills the derived fields every adapter reports the same way
func finishQuote(q *types.NormalizedQuote, req types.QuoteRequest) *types.NormalizedQuote {
	amountIn, _ := req.AmountInt()
	if q.FormattedOutputAmount == "" {
		q.FormattedOutputAmount = types.FormatUnits(q.OutputAmount, req.ToToken)
	}
	if q.Rate == 0 {
		q.Rate = types.ComputeRate(amountIn, q.OutputAmount, req.FromToken, req.ToToken)
	}
	if q.InputUSD == 0 {
		q.InputUSD = usdValue(amountIn, req.FromToken, req.TokenInUSD)
	}
	if q.OutputUSD == 0 {
		q.OutputUSD = usdValue(q.OutputAmount, req.ToToken, req.TokenOutUSD)
	}
	q.PlatformFeePercent = feePercent(req.FeeBps)
	q.Request = req
	return q
}

// evmTokenAddress returns the contract or the native placeholder
func evmTokenAddress(token types.TokenRef) string {
	if token.IsNative || token.Address == "" {
		return types.NativeEVMAddress
	}
	return token.Address
}

// decodeRaw recovers an adapter's own raw quote from a provider.Quote.
// Quotes from the stream carry the upstream JSON and are decoded into T.
func decodeRaw[T any](name string, quote provider.Quote) (T, error) {
	var zero T
	var data []byte
	switch raw := quote.Normalized.RawQuote.(type) {
	case T:
		return raw, nil
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		return zero, &provider.SubmissionError{
			Provider: name,
			Step:     "decode quote",
			Err:      fmt.Errorf("unexpected raw quote %T", quote.Normalized.RawQuote),
		}
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		return zero, &provider.SubmissionError{Provider: name, Step: "decode quote", Err: err}
	}
	if isNil(decoded) {
		return zero, &provider.SubmissionError{Provider: name, Step: "decode quote", Err: errors.New("empty raw quote")}
	}
	return decoded, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
