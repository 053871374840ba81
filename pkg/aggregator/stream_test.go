package aggregator

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventParser_SplitAcrossChunks(t *testing.T) {
	var p eventParser
	stream := "event: init\ndata: {\"requestId\":\"r1\"}\n\nevent: quote\ndata: {\"provider\":\"p1\"}\n\n"

	var got []sseEvent
	for i := 0; i < len(stream); i += 7 {
		end := min(i+7, len(stream))
		got = append(got, p.Feed([]byte(stream[i:end]))...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "init", got[0].Name)
	assert.JSONEq(t, `{"requestId":"r1"}`, string(got[0].Data))
	assert.Equal(t, "quote", got[1].Name)
	assert.JSONEq(t, `{"provider":"p1"}`, string(got[1].Data))
}

func TestEventParser_TagPersistsAcrossLines(t *testing.T) {
	var p eventParser
	got := p.Feed([]byte("event: quote\r\ndata: {\"a\":1}\r\ndata: {\"a\":2}\r\n\r\n: keep-alive\ndata: {\"a\":3}\n"))

	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, "quote", ev.Name)
	}
	assert.Equal(t, `{"a":3}`, string(got[2].Data))
}

func TestEventParser_Flush(t *testing.T) {
	var p eventParser
	assert.Empty(t, p.Feed([]byte("event: complete\ndata: {}")))

	got := p.Flush()
	require.Len(t, got, 1)
	assert.Equal(t, "complete", got[0].Name)
	assert.Empty(t, p.Flush())
}

func TestReadEvents(t *testing.T) {
	out := make(chan sseEvent, 10)
	err := readEvents(context.Background(), strings.NewReader("event: quote\ndata: {}\nevent: complete\ndata: {}"), out)
	require.NoError(t, err)
	close(out)

	var names []string
	for ev := range out {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"quote", "complete"}, names)
}

func TestParseStreamQuote(t *testing.T) {
	req := crossChainRequest()

	q, err := parseStreamQuote([]byte(`{"provider":"p1","outputAmount":"995000","priceImpact":null,"rawQuote":{"id":"x"},"timeEstimate":30}`))
	require.NoError(t, err)

	n, err := q.normalized(req)
	require.NoError(t, err)
	assert.Equal(t, "995000", n.OutputAmount.String())
	assert.Equal(t, "0.995", n.FormattedOutputAmount)
	assert.InDelta(t, 0.995, n.Rate, 1e-9)
	assert.True(t, math.IsNaN(n.PriceImpactPercent))
	assert.Equal(t, float64(30), n.TimeEstimateSeconds)
	assert.NotNil(t, n.RawQuote)

	q, err = parseStreamQuote([]byte(`{"provider":"p1","outputAmount":42}`))
	require.NoError(t, err)
	n, err = q.normalized(req)
	require.NoError(t, err)
	assert.Equal(t, "42", n.OutputAmount.String())
	assert.Nil(t, n.RawQuote)
}

func TestParseStreamQuote_Invalid(t *testing.T) {
	for _, payload := range []string{
		`{"outputAmount":"1"}`,
		`{"provider":"p1","outputAmount":"-5"}`,
		`{"provider":"p1","outputAmount":"1.5"}`,
		`{"provider":"","outputAmount":"1"}`,
		`not json`,
	} {
		_, err := parseStreamQuote([]byte(payload))
		assert.Error(t, err, payload)
	}
}

func TestStreamURL(t *testing.T) {
	req := crossChainRequest()
	req.FeeBps = 5
	req.SlippageBps = 50

	raw, err := streamURL("https://agg.example.com/api/v1/quotes?client=cli", req, Preferences{Excluded: []string{"a", "b"}})
	require.NoError(t, err)

	assert.Contains(t, raw, "client=cli")
	for _, want := range []string{
		"fromChain=1", "toChain=42161", "fromAmount=1000000", "fromTokenDecimals=6",
		"fee=5", "slippage=50", "excludedSources=a%2Cb", "stream=true", "toTokenUsd=1",
	} {
		assert.Contains(t, raw, want)
	}
}
