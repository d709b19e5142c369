package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/episode"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/ledger"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func testMarket() event.MarketID {
	return event.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: event.Period(time.Minute)}
}

func testSymbol() price.Symbol {
	return price.Symbol{Kind: price.Spot, Base: "BTC", Quote: "USDT", TickSize: 0.01, TickValueUSD: 0.01, LotSize: 0.0001}
}

func buildSimData(t *testing.T, base time.Time, n int) *event.SimulationData {
	t.Helper()
	m := testMarket()
	var candles []event.OHLCV
	closePrice := 50000.0
	for i := 0; i < n; i++ {
		o := base.Add(time.Duration(i) * time.Minute)
		c := o.Add(time.Minute)
		candles = append(candles, event.OHLCV{OpenTS: o, CloseTS: c, Open: closePrice, High: closePrice + 200, Low: closePrice - 200, Close: closePrice})
	}
	sd, err := event.New(map[event.MarketID][]event.OHLCV{m: candles}, nil, nil)
	require.NoError(t, err)
	return sd
}

func TestStepOutsideRunningIsInvalidState(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sd := buildSimData(t, base, 5)
	e := New(sd, map[event.MarketID]price.Symbol{testMarket(): testSymbol()}, DefaultConfig())

	_, _, _, err := e.Step(nil)
	assert.Error(t, err)
}

func TestResetTransitionsToRunning(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sd := buildSimData(t, base, 5)
	e := New(sd, map[event.MarketID]price.Symbol{testMarket(): testSymbol()}, DefaultConfig())

	obs := e.Reset()
	assert.Equal(t, Running, e.Status())
	assert.Equal(t, episode.ID(0), obs.Episode.ID)
}

func TestStepOpenAndCloseTradeAccruesReward(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := testMarket()

	// First two candles stay tight around 50000 (no SL/TP touch); the
	// third widens enough to cover both the stop-loss and take-profit
	// set on the trade opened against the first candle.
	candles := []event.OHLCV{
		{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000},
		{OpenTS: base.Add(time.Minute), CloseTS: base.Add(2 * time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000},
		{OpenTS: base.Add(2 * time.Minute), CloseTS: base.Add(3 * time.Minute), Open: 50000, High: 50200, Low: 49800, Close: 50000},
	}
	sd, err := event.New(map[event.MarketID][]event.OHLCV{m: candles}, nil, nil)
	require.NoError(t, err)

	cfg := DefaultConfig().WithExecutionBias(trade.Pessimistic)
	e := New(sd, map[event.MarketID]price.Symbol{m: testSymbol()}, cfg)
	e.Reset()

	tp := price.Price(50100)
	sl := price.Price(49900)
	actions := []ledger.Action{{
		Kind: ledger.OpenAction, Market: m, AgentID: "agentA", TradeID: 1,
		Direction: trade.Long, Quantity: 1.0, StopLoss: &sl, TakeProfit: &tp,
	}}

	obs, reward, outcome, err := e.Step(actions)
	require.NoError(t, err)
	assert.Equal(t, InProgress, outcome)
	assert.Equal(t, 0.0, reward)
	assert.NotNil(t, obs.MarketView)

	_, reward2, _, err := e.Step(nil)
	require.NoError(t, err)
	assert.InDelta(t, -100.0, reward2, 1e-9) // Pessimistic: stop-loss wins
}

func TestStepOutcomeTerminatesAtEpisodeEndWithNoLiveTrades(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sd := buildSimData(t, base, 1440)
	e := New(sd, map[event.MarketID]price.Symbol{testMarket(): testSymbol()}, DefaultConfig())
	e.Reset()

	var outcome StepOutcome
	var err error
	for i := 0; i < 1440; i++ {
		_, _, outcome, err = e.Step(nil)
		require.NoError(t, err)
		if outcome != InProgress {
			break
		}
	}
	assert.Equal(t, Terminated, outcome)
	assert.Equal(t, EpisodeDone, e.Status())
}
