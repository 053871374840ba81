package aggregator

import (
	"math"
	"math/big"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

// NetOutput returns the quote's output minus its protocol fee converted into
// the output token's smallest unit. The fee is only subtracted when both the
// fee and the output token's USD price are positive.
func NetOutput(q types.NormalizedQuote) *big.Int {
	out := new(big.Int)
	if q.OutputAmount != nil {
		out.Set(q.OutputAmount)
	}

	fee, price := q.ProtocolFee, q.Request.TokenOutUSD
	if !(fee > 0) || !(price > 0) || math.IsInf(fee, 0) || math.IsInf(price, 0) {
		return out
	}

	feeUnits := decimal.NewFromFloat(fee).
		Div(decimal.NewFromFloat(price)).
		Shift(int32(q.Request.ToToken.Decimals)).
		Truncate(0)

	return out.Sub(out, feeUnits.BigInt())
}

type ranked struct {
	quote provider.Quote
	net   *big.Int
}

// Rank returns a copy of quotes sorted by NetOutput, highest first. Equal
// quotes keep their arrival order.
func Rank(quotes []provider.Quote) []provider.Quote {
	rs := make([]ranked, len(quotes))
	for i, q := range quotes {
		rs[i] = ranked{quote: q, net: NetOutput(q.Normalized)}
	}

	slices.SortStableFunc(rs, func(a, b ranked) int {
		return b.net.Cmp(a.net)
	})

	out := make([]provider.Quote, len(rs))
	for i, r := range rs {
		out[i] = r.quote
	}
	return out
}
