package agent

import (
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/env"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/ledger"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// FlatOpenConfig parameterizes FlatOpenAgent.
type FlatOpenConfig struct {
	Market           event.MarketID
	Direction        trade.Direction
	Quantity         float64
	TakeProfitTicks  int64
	StopLossTicks    int64
	Symbol           price.Symbol
}

// FlatOpenAgent is a minimal illustrative strategy: on the first step
// of an episode where its configured market has a candle, it opens one
// position at market with a fixed tick-distance SL/TP; after that it
// does nothing until Reset and lets the Environment's own intrabar
// resolution manage the exit. It does not re-open within the same
// episode after that trade closes. It exists to exercise the Agent
// contract end-to-end, not as a trading strategy.
type FlatOpenAgent struct {
	id       Identifier
	cfg      FlatOpenConfig
	nextID   int64
	hasOpen  bool
}

// NewFlatOpenAgent constructs a FlatOpenAgent under the given identity.
func NewFlatOpenAgent(id Identifier, cfg FlatOpenConfig) *FlatOpenAgent {
	return &FlatOpenAgent{id: id, cfg: cfg}
}

// Act implements Agent.
func (a *FlatOpenAgent) Act(obs env.Observation) ([]ledger.Action, error) {
	candle, ok := obs.MarketView[a.cfg.Market]
	if !ok {
		return nil, nil
	}

	if a.hasOpen {
		return nil, nil
	}

	tickSize := a.cfg.Symbol.TickSize
	var sl, tp price.Price
	if a.cfg.Direction == trade.Long {
		sl = price.Price(candle.Close - float64(a.cfg.StopLossTicks)*tickSize)
		tp = price.Price(candle.Close + float64(a.cfg.TakeProfitTicks)*tickSize)
	} else {
		sl = price.Price(candle.Close + float64(a.cfg.StopLossTicks)*tickSize)
		tp = price.Price(candle.Close - float64(a.cfg.TakeProfitTicks)*tickSize)
	}

	a.nextID++
	a.hasOpen = true

	return []ledger.Action{{
		Kind:       ledger.OpenAction,
		Market:     a.cfg.Market,
		AgentID:    string(a.id),
		TradeID:    a.nextID,
		Direction:  a.cfg.Direction,
		Quantity:   a.cfg.Quantity,
		StopLoss:   &sl,
		TakeProfit: &tp,
	}}, nil
}

// Reset implements Agent: clears the single-position flag between episodes.
func (a *FlatOpenAgent) Reset() {
	a.hasOpen = false
}

// Identifier implements Agent.
func (a *FlatOpenAgent) Identifier() Identifier {
	return a.id
}
