package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

func btcUSDT() price.Symbol {
	return price.Symbol{Kind: price.Spot, Base: "BTC", Quote: "USDT", TickSize: 0.01, TickValueUSD: 0.01, LotSize: 0.0001}
}

func sixE() price.Symbol {
	return price.Symbol{Kind: price.Futures, Root: "6E", ContractMonth: 9, ContractYear: 2025, TickSize: 0.00005, TickValueUSD: 6.25, LotSize: 1}
}

func market() event.MarketID {
	return event.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: event.Period(time.Minute)}
}

func TestScenarioS1StraightLongTakeProfit(t *testing.T) {
	sym := btcUSDT()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tp := price.Price(50100.00)
	sl := price.Price(49900.00)
	tr := OpenAtMarket(1, "agentA", market(), Long, 1.0, 50000.00, base, &sl, &tp, sym)
	require.Equal(t, Active, tr.Status)

	candle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50120, Low: 50000, Close: 50050}
	closed, triggered, err := tr.ResolveIntrabar(candle, Pessimistic, sym)
	require.NoError(t, err)
	require.True(t, triggered)

	assert.Equal(t, Closed, closed.Status)
	assert.Equal(t, TakeProfit, closed.CloseReason)
	assert.Equal(t, price.Price(50100.00), closed.ExitPrice)

	ticks, usd := closed.RealizedPnL(sym)
	assert.Equal(t, int64(10000), ticks)
	assert.InDelta(t, 100.00, usd, 1e-9)
}

func TestScenarioS2IntrabarBothTouchedBiasFlip(t *testing.T) {
	sym := btcUSDT()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tp := price.Price(50100.00)
	sl := price.Price(49900.00)

	candle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50150, Low: 49880, Close: 50000}

	trPess := OpenAtMarket(1, "agentA", market(), Long, 1.0, 50000.00, base, &sl, &tp, sym)
	closedPess, triggered, err := trPess.ResolveIntrabar(candle, Pessimistic, sym)
	require.NoError(t, err)
	require.True(t, triggered)
	assert.Equal(t, StopLoss, closedPess.CloseReason)
	_, usdPess := closedPess.RealizedPnL(sym)
	assert.InDelta(t, -100.00, usdPess, 1e-9)

	trOpt := OpenAtMarket(2, "agentA", market(), Long, 1.0, 50000.00, base, &sl, &tp, sym)
	closedOpt, triggered, err := trOpt.ResolveIntrabar(candle, Optimistic, sym)
	require.NoError(t, err)
	require.True(t, triggered)
	assert.Equal(t, TakeProfit, closedOpt.CloseReason)
	_, usdOpt := closedOpt.RealizedPnL(sym)
	assert.InDelta(t, 100.00, usdOpt, 1e-9)
}

func TestScenarioS3FuturesDirtyEntryRoundsExactly(t *testing.T) {
	sym := sixE()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tr := OpenAtMarket(1, "agentA", event.MarketID{Broker: "sim", Exchange: "cme", Symbol: "6E", Period: event.Period(time.Hour)},
		Long, 1.0, 1.09999999, base, nil, nil, sym)
	require.Equal(t, Active, tr.Status)

	closed, err := tr.MarketClose(base.Add(time.Hour), price.Price(1.10050000), sym)
	require.NoError(t, err)

	ticks, usd := closed.RealizedPnL(sym)
	assert.Equal(t, int64(10), ticks)
	assert.InDelta(t, 62.50, usd, 1e-9)
}

func TestFillRequiresLimitCoverage(t *testing.T) {
	sym := btcUSDT()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limit := price.Price(49500.00)

	pending := NewPending(1, "agentA", market(), Long, 1.0, limit, nil, nil)

	missCandle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50100, Low: 49800, Close: 50000}
	_, filled, err := pending.Fill(missCandle, sym)
	require.NoError(t, err)
	assert.False(t, filled)

	hitCandle := event.OHLCV{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 49900, High: 49950, Low: 49400, Close: 49500}
	active, filled, err := pending.Fill(hitCandle, sym)
	require.NoError(t, err)
	require.True(t, filled)
	assert.Equal(t, Active, active.Status)
	assert.Equal(t, limit, active.EntryPrice)
	assert.Equal(t, hitCandle.CloseTS, active.EntryTS)
}

func TestCancelPendingAndReset(t *testing.T) {
	limit := price.Price(100)
	pending := NewPending(1, "agentA", market(), Long, 1.0, limit, nil, nil)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	canceled, err := pending.CancelPending(ts)
	require.NoError(t, err)
	assert.Equal(t, Canceled, canceled.Status)
	assert.Equal(t, CanceledReason, canceled.CloseReason)

	reset, err := canceled.Reset()
	require.NoError(t, err)
	assert.Equal(t, Pending, reset.Status)
	assert.Equal(t, Trade{}, reset)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	limit := price.Price(100)
	pending := NewPending(1, "agentA", market(), Long, 1.0, limit, nil, nil)

	_, err := pending.CancelPending(time.Now())
	_ = err // fresh pending cancel is legal; check illegal ones below

	sym := btcUSDT()
	_, err = pending.MarketClose(time.Now(), price.Price(100), sym)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = pending.ResolveIntrabar(event.OHLCV{}, Pessimistic, sym)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = pending.Reset()
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestValidateOrderLongAndShortOrdering(t *testing.T) {
	sym := btcUSDT()
	entry := price.Price(100)
	badSL := price.Price(110)
	goodSL := price.Price(90)
	goodTP := price.Price(110)

	err := ValidateOrder(Long, &entry, &badSL, &goodTP, 1.0, sym)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	err = ValidateOrder(Long, &entry, &goodSL, &goodTP, 1.0, sym)
	assert.NoError(t, err)

	shortSL := price.Price(110)
	shortTP := price.Price(90)
	err = ValidateOrder(Short, &entry, &shortSL, &shortTP, 1.0, sym)
	assert.NoError(t, err)

	err = ValidateOrder(Long, &entry, &goodSL, &goodTP, 0, sym)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestExpectedWinLossFrozenAtFillTime(t *testing.T) {
	sym := btcUSDT()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tp := price.Price(50100.00)
	sl := price.Price(49900.00)

	tr := OpenAtMarket(1, "agentA", market(), Long, 1.0, 50000.00, base, &sl, &tp, sym)
	assert.Equal(t, int64(10000), tr.ExpectedWinTicks)
	assert.Equal(t, int64(-10000), tr.ExpectedLossTicks)
	assert.InDelta(t, 1.0, tr.RiskRewardRatio, 1e-9)

	// Modifying SL/TP after fill must not retroactively change the
	// frozen expectation fields.
	newTP := price.Price(50200.00)
	modified, err := tr.Modify(nil, nil, &newTP)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), modified.ExpectedWinTicks)
}
