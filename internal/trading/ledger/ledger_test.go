package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/episode"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func btcMarket() event.MarketID {
	return event.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: event.Period(time.Minute)}
}

func btcSymbol() price.Symbol {
	return price.Symbol{Kind: price.Spot, Base: "BTC", Quote: "USDT", TickSize: 0.01, TickValueUSD: 0.01, LotSize: 0.0001}
}

func newLedger() *Ledger {
	return New(map[event.MarketID]price.Symbol{btcMarket(): btcSymbol()}, trade.Pessimistic, -1.0)
}

func TestApplyActionsOpenMarketFillsImmediately(t *testing.T) {
	l := newLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	view := MarketView{btcMarket(): {OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000}}

	tp := price.Price(50100)
	sl := price.Price(49900)
	result, err := l.ApplyActions(0, []Action{{
		Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1,
		Direction: trade.Long, Quantity: 1.0, StopLoss: &sl, TakeProfit: &tp,
	}}, view)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)
	assert.Equal(t, 0, result.Rejected)
	assert.False(t, l.IsTerminal(0))
}

func TestApplyActionsRejectsInvalidOrdering(t *testing.T) {
	l := newLedger()
	view := MarketView{}
	entry := price.Price(50000)
	badSL := price.Price(50100) // long requires SL < entry
	result, err := l.ApplyActions(0, []Action{{
		Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1,
		Direction: trade.Long, Quantity: 1.0, EntryPrice: &entry, StopLoss: &badSL,
	}}, view)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, 1, result.Rejected)
}

func TestApplyActionsDeterministicSortOrder(t *testing.T) {
	l := newLedger()
	view := MarketView{}
	// Submitted out of order; Ledger must sort by market, agent, trade id
	// before dispatch. Cancels on nonexistent trades are all rejected
	// whatever the order; pending Opens then land in the live collection
	// in dispatch order, which makes the sort observable.
	actions := []Action{
		{Kind: CancelAction, Market: btcMarket(), AgentID: "b", TradeID: 2},
		{Kind: CancelAction, Market: btcMarket(), AgentID: "a", TradeID: 1},
	}
	result, err := l.ApplyActions(0, actions, view)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rejected)

	limit := price.Price(49000)
	opens := []Action{
		{Kind: OpenAction, Market: btcMarket(), AgentID: "b", TradeID: 2, Direction: trade.Long, Quantity: 1.0, EntryPrice: &limit},
		{Kind: OpenAction, Market: btcMarket(), AgentID: "a", TradeID: 1, Direction: trade.Long, Quantity: 1.0, EntryPrice: &limit},
	}
	result, err = l.ApplyActions(0, opens, view)
	require.NoError(t, err)
	require.Equal(t, 2, result.Executed)
	live := l.states(0).LiveTrades(btcMarket())
	require.Len(t, live, 2)
	assert.Equal(t, []int64{1, 2}, []int64{live[0].ID, live[1].ID})
}

func TestApplyUpdatesFillsPendingAndClosesActive(t *testing.T) {
	l := newLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := price.Price(50000)
	tp := price.Price(50100)
	sl := price.Price(49900)

	result, err := l.ApplyActions(0, []Action{{
		Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1,
		Direction: trade.Long, Quantity: 1.0, EntryPrice: &limit, StopLoss: &sl, TakeProfit: &tp,
	}}, MarketView{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Executed)

	fillCandle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50050, High: 50060, Low: 49950, Close: 50000}
	require.NoError(t, l.ApplyUpdates(0, MarketView{btcMarket(): fillCandle}))
	assert.False(t, l.IsTerminal(0))

	exitCandle := event.OHLCV{OpenTS: base.Add(time.Minute), CloseTS: base.Add(2 * time.Minute), Open: 50000, High: 50120, Low: 49990, Close: 50050}
	require.NoError(t, l.ApplyUpdates(0, MarketView{btcMarket(): exitCandle}))
	assert.True(t, l.IsTerminal(0))

	reward := l.PopStepReward(0)
	assert.InDelta(t, 100.0, reward, 1e-9)
}

func TestAsJournalSortedByEntryTimestamp(t *testing.T) {
	l := newLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	view1 := MarketView{btcMarket(): {OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000}}
	_, err := l.ApplyActions(0, []Action{{Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1, Direction: trade.Long, Quantity: 1.0}}, view1)
	require.NoError(t, err)

	closeCandle := event.OHLCV{OpenTS: base.Add(time.Minute), CloseTS: base.Add(2 * time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50010}
	_, err = l.ApplyActions(0, []Action{{Kind: MarketCloseAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1}}, MarketView{btcMarket(): closeCandle})
	require.NoError(t, err)

	j, err := l.AsJournal()
	require.NoError(t, err)
	require.Equal(t, 1, j.Len())
	row := j.Rows()[0]
	assert.Equal(t, "closed", row.TradeState)
	assert.Equal(t, "market_close", row.ExitReason)
}

func TestApplyActionsPivotClosesAndReopensInOneStep(t *testing.T) {
	l := newLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	openCandle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000}
	_, err := l.ApplyActions(0, []Action{{Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1, Direction: trade.Long, Quantity: 1.0}}, MarketView{btcMarket(): openCandle})
	require.NoError(t, err)

	pivotCandle := event.OHLCV{OpenTS: base.Add(time.Minute), CloseTS: base.Add(2 * time.Minute), Open: 50000, High: 50020, Low: 49980, Close: 50010}
	result, err := l.ApplyActions(0, []Action{Pivot(btcMarket(), "agentA", 1, 2, trade.Short, 1.0, nil, nil)}, MarketView{btcMarket(): pivotCandle})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)
	assert.False(t, l.IsTerminal(0)) // the new short trade 2 is still Active

	closeCandle := event.OHLCV{OpenTS: base.Add(2 * time.Minute), CloseTS: base.Add(3 * time.Minute), Open: 50010, High: 50020, Low: 50000, Close: 50010}
	_, err = l.ApplyActions(0, []Action{MarketCloseFull(btcMarket(), "agentA", 2)}, MarketView{btcMarket(): closeCandle})
	require.NoError(t, err)
	assert.True(t, l.IsTerminal(0))

	j, err := l.AsJournal()
	require.NoError(t, err)
	require.Equal(t, 2, j.Len())
	assert.Equal(t, "pivot", j.Rows()[0].ExitReason)
	assert.Equal(t, "market_close", j.Rows()[1].ExitReason)
}

func TestForceCloseEpisodeClearsLiveTrades(t *testing.T) {
	l := newLedger()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := price.Price(49000) // won't fill

	_, err := l.ApplyActions(0, []Action{{Kind: OpenAction, Market: btcMarket(), AgentID: "agentA", TradeID: 1, Direction: trade.Long, Quantity: 1.0, EntryPrice: &limit}}, MarketView{})
	require.NoError(t, err)

	candle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000}
	require.NoError(t, l.ForceCloseEpisode(0, MarketView{btcMarket(): candle}))
	assert.True(t, l.IsTerminal(episode.ID(0)))
}
