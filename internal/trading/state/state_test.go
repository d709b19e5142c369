package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func mkt() event.MarketID {
	return event.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: event.Period(time.Minute)}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	s := New()
	limit := price.Price(100)
	tr := trade.NewPending(1, "agentA", mkt(), trade.Long, 1.0, limit, nil, nil)

	require.NoError(t, s.Insert(tr))
	err := s.Insert(tr)
	assert.ErrorIs(t, err, ErrDuplicateTradeID)
}

func TestCloseMovesFromLiveToDead(t *testing.T) {
	s := New()
	limit := price.Price(100)
	tr := trade.NewPending(1, "agentA", mkt(), trade.Long, 1.0, limit, nil, nil)
	require.NoError(t, s.Insert(tr))

	canceled, err := tr.CancelPending(time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close(canceled))

	assert.Empty(t, s.LiveTrades(mkt()))
	dead := s.DeadTrades(mkt())
	require.Len(t, dead, 1)
	assert.Equal(t, trade.Canceled, dead[0].Status)

	assert.True(t, s.AllClosed())
}

func TestLiveOrderIsInsertionOrder(t *testing.T) {
	s := New()
	limit := price.Price(100)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, s.Insert(trade.NewPending(i, "agentA", mkt(), trade.Long, 1.0, limit, nil, nil)))
	}
	live := s.LiveTrades(mkt())
	require.Len(t, live, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{live[0].ID, live[1].ID, live[2].ID})
}

func TestPopRewardZeroesAccumulator(t *testing.T) {
	s := New()
	s.AddReward(5)
	s.AddReward(2.5)
	assert.Equal(t, 7.5, s.PopReward())
	assert.Equal(t, 0.0, s.PopReward())
}

func TestNoTradeSimultaneouslyLiveAndDead(t *testing.T) {
	s := New()
	limit := price.Price(100)
	tr := trade.NewPending(1, "agentA", mkt(), trade.Long, 1.0, limit, nil, nil)
	require.NoError(t, s.Insert(tr))

	canceled, err := tr.CancelPending(time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close(canceled))

	_, stillLive := s.Get(mkt(), 1)
	assert.False(t, stillLive)
}
