package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

func mkCandle(openTS, closeTS time.Time, o, h, l, cl float64) event.OHLCV {
	return event.OHLCV{OpenTS: openTS, CloseTS: closeTS, Open: o, High: h, Low: l, Close: cl, Volume: 1}
}

func TestCursorAdvancesMinimumHeadAcrossStreams(t *testing.T) {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	marketA := event.MarketID{Broker: "b", Exchange: "e", Symbol: "A", Period: event.Period(time.Minute)}
	marketB := event.MarketID{Broker: "b", Exchange: "e", Symbol: "B", Period: event.Period(time.Minute)}

	candlesA := []event.OHLCV{
		mkCandle(base, base.Add(time.Minute), 1, 1, 1, 1),
		mkCandle(base.Add(time.Minute), base.Add(3*time.Minute), 1, 1, 1, 1),
	}
	candlesB := []event.OHLCV{
		mkCandle(base, base.Add(2*time.Minute), 2, 2, 2, 2),
		mkCandle(base.Add(2*time.Minute), base.Add(4*time.Minute), 2, 2, 2, 2),
	}

	sd, err := event.New(map[event.MarketID][]event.OHLCV{marketA: candlesA, marketB: candlesB}, nil, nil)
	require.NoError(t, err)

	cur := New(sd)
	assert.Equal(t, base.Add(time.Minute), cur.CurrentTS()) // min(head A=1m, head B=2m)

	advanced := cur.Step(sd, base.Add(24*time.Hour))
	require.True(t, advanced)
	// A's head rolls to its 2nd candle (close=3m); B's head is still 2m -> new min = 2m.
	assert.Equal(t, base.Add(2*time.Minute), cur.CurrentTS())

	advanced = cur.Step(sd, base.Add(24*time.Hour))
	require.True(t, advanced)
	assert.Equal(t, base.Add(3*time.Minute), cur.CurrentTS())

	advanced = cur.Step(sd, base.Add(24*time.Hour))
	require.True(t, advanced)
	assert.Equal(t, base.Add(4*time.Minute), cur.CurrentTS())
	// A is exhausted; B's head is its last candle, which one more step consumes.
	assert.False(t, cur.IsEndOfData())

	advanced = cur.Step(sd, base.Add(24*time.Hour))
	require.True(t, advanced)
	assert.Equal(t, base.Add(4*time.Minute), cur.CurrentTS()) // frozen at the last head
	assert.True(t, cur.IsEndOfData())

	advanced = cur.Step(sd, base.Add(24*time.Hour))
	assert.False(t, advanced)
}

func TestCursorNeverStepsPastEpisodeEnd(t *testing.T) {
	base := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	market := event.MarketID{Broker: "b", Exchange: "e", Symbol: "A", Period: event.Period(time.Minute)}
	candles := []event.OHLCV{
		mkCandle(base, base.Add(time.Minute), 1, 1, 1, 1),
		mkCandle(base.Add(time.Hour), base.Add(time.Hour+time.Minute), 1, 1, 1, 1),
	}
	sd, err := event.New(map[event.MarketID][]event.OHLCV{market: candles}, nil, nil)
	require.NoError(t, err)

	episodeEnd := base.Add(time.Minute) // equal to the head's point-in-time (1st candle's close)
	cur := New(sd)

	advanced := cur.Step(sd, episodeEnd)
	assert.False(t, advanced, "cursor already at/after episode end boundary should not advance")
}

func TestLatestCandleFreezesAfterStreamExhausted(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	market := event.MarketID{Broker: "b", Exchange: "e", Symbol: "A", Period: event.Period(time.Minute)}
	candles := []event.OHLCV{mkCandle(base, base.Add(time.Minute), 1, 2, 0, 1.5)}
	sd, err := event.New(map[event.MarketID][]event.OHLCV{market: candles}, nil, nil)
	require.NoError(t, err)

	cur := New(sd)
	cur.Step(sd, base.Add(24*time.Hour))

	c, ok := cur.LatestCandle(sd, market)
	require.True(t, ok)
	assert.Equal(t, 1.5, c.Close)
	assert.True(t, cur.IsEndOfData())
}
