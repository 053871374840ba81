package aggregator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/provider/stub"
	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

func quoteFrom(name string, output int64, fee float64, req types.QuoteRequest) provider.Quote {
	return provider.Quote{
		Normalized: types.NormalizedQuote{
			OutputAmount: big.NewInt(output),
			ProtocolFee:  fee,
			Request:      req,
		},
		Adapter: stub.New(name, output, types.Ethereum, types.Arbitrum),
	}
}

func names(quotes []provider.Quote) []string {
	out := make([]string, len(quotes))
	for i, q := range quotes {
		out[i] = q.Provider()
	}
	return out
}

func TestRank_ByOutput(t *testing.T) {
	req := crossChainRequest()
	quotes := []provider.Quote{
		quoteFrom("p2", 990000, 0, req),
		quoteFrom("p1", 995000, 0, req),
	}

	assert.Equal(t, []string{"p1", "p2"}, names(Rank(quotes)))
	// input untouched
	assert.Equal(t, []string{"p2", "p1"}, names(quotes))
}

func TestRank_ProtocolFeeReducesNet(t *testing.T) {
	req := crossChainRequest()
	req.TokenOutUSD = 1

	quotes := []provider.Quote{
		quoteFrom("p1", 995000, 5, req),
		quoteFrom("p2", 990000, 0, req),
	}

	assert.Equal(t, []string{"p2", "p1"}, names(Rank(quotes)))
	assert.Equal(t, big.NewInt(995000-5_000_000), NetOutput(quotes[0].Normalized))
}

func TestRank_FeeIgnoredWithoutPrice(t *testing.T) {
	req := crossChainRequest()
	req.TokenOutUSD = 0

	q := quoteFrom("p1", 995000, 5, req)
	assert.Equal(t, big.NewInt(995000), NetOutput(q.Normalized))
}

func TestRank_SmallFee(t *testing.T) {
	req := crossChainRequest()
	req.TokenOutUSD = 2 // 0.01 USD = 0.005 tokens = 5000 units

	q := quoteFrom("p1", 995000, 0.01, req)
	assert.Equal(t, big.NewInt(990000), NetOutput(q.Normalized))
}

func TestRank_StableOnTies(t *testing.T) {
	req := crossChainRequest()
	quotes := []provider.Quote{
		quoteFrom("a", 100, 0, req),
		quoteFrom("b", 200, 0, req),
		quoteFrom("c", 100, 0, req),
		quoteFrom("d", 100, 0, req),
	}

	assert.Equal(t, []string{"b", "a", "c", "d"}, names(Rank(quotes)))
}

func TestNetOutput_NilAmount(t *testing.T) {
	assert.Equal(t, 0, NetOutput(types.NormalizedQuote{}).Sign())
}
