package eval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LenWilliamson/chapaty-sub001/internal/agent"
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	envpkg "github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/env"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/ledger"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func evalTestMarket() envpkg.MarketID {
	return envpkg.MarketID{Broker: "sim", Exchange: "sim", Symbol: "BTC-USDT", Period: envpkg.Period(time.Minute)}
}

func evalTestSymbol() price.Symbol {
	return price.Symbol{Kind: price.Spot, Base: "BTC", Quote: "USDT", TickSize: 0.01, TickValueUSD: 0.01, LotSize: 0.0001}
}

// noopAgent never submits an action; used to exercise the harness's
// reset/step/Done plumbing without depending on trading outcomes.
type noopAgent struct{ id agent.Identifier }

func (a *noopAgent) Act(env.Observation) ([]ledger.Action, error) { return nil, nil }
func (a *noopAgent) Reset()                                       {}
func (a *noopAgent) Identifier() agent.Identifier                 { return a.id }

// failingAgent always errors on Act, to exercise error propagation.
type failingAgent struct{ id agent.Identifier }

func (a *failingAgent) Act(env.Observation) ([]ledger.Action, error) {
	return nil, errors.New("boom")
}
func (a *failingAgent) Reset()                       {}
func (a *failingAgent) Identifier() agent.Identifier { return a.id }

// oneShotLongAgent opens a single long position on its first Act call
// against a fixed SL/TP and then does nothing.
type oneShotLongAgent struct {
	id      agent.Identifier
	market  envpkg.MarketID
	opened  bool
}

func (a *oneShotLongAgent) Act(obs env.Observation) ([]ledger.Action, error) {
	if a.opened {
		return nil, nil
	}
	a.opened = true
	tp := price.Price(50100)
	sl := price.Price(49900)
	return []ledger.Action{{
		Kind: ledger.OpenAction, Market: a.market, AgentID: string(a.id), TradeID: 1,
		Direction: trade.Long, Quantity: 1.0, StopLoss: &sl, TakeProfit: &tp,
	}}, nil
}
func (a *oneShotLongAgent) Reset()                       { a.opened = false }
func (a *oneShotLongAgent) Identifier() agent.Identifier { return a.id }

func buildEvalSimData(t *testing.T, n int) *envpkg.SimulationData {
	t.Helper()
	m := evalTestMarket()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var candles []envpkg.OHLCV
	for i := 0; i < n; i++ {
		o := base.Add(time.Duration(i) * time.Minute)
		c := o.Add(time.Minute)
		candles = append(candles, envpkg.OHLCV{OpenTS: o, CloseTS: c, Open: 50000, High: 50010, Low: 49990, Close: 50000})
	}
	sd, err := envpkg.New(map[envpkg.MarketID][]envpkg.OHLCV{m: candles}, nil, nil)
	require.NoError(t, err)
	return sd
}

func TestEvaluateAgentRunsToDoneWithNoopAgent(t *testing.T) {
	sd := buildEvalSimData(t, 5)
	m := evalTestMarket()
	e := env.New(sd, map[envpkg.MarketID]price.Symbol{m: evalTestSymbol()}, env.DefaultConfig())

	journal, err := EvaluateAgent(e, &noopAgent{id: "noop"})
	require.NoError(t, err)
	assert.Equal(t, env.Done, e.Status())
	assert.Equal(t, 0, journal.Len())
}

func TestEvaluateAgentPropagatesAgentActError(t *testing.T) {
	sd := buildEvalSimData(t, 5)
	m := evalTestMarket()
	e := env.New(sd, map[envpkg.MarketID]price.Symbol{m: evalTestSymbol()}, env.DefaultConfig())

	_, err := EvaluateAgent(e, &failingAgent{id: "bad"})
	assert.Error(t, err)
}

func TestRunRanksAgentsByNetProfit(t *testing.T) {
	m := evalTestMarket()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []envpkg.OHLCV{
		{OpenTS: base, CloseTS: base.Add(time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000},
		{OpenTS: base.Add(time.Minute), CloseTS: base.Add(2 * time.Minute), Open: 50000, High: 50010, Low: 49990, Close: 50000},
		{OpenTS: base.Add(2 * time.Minute), CloseTS: base.Add(3 * time.Minute), Open: 50000, High: 50200, Low: 49800, Close: 50000},
	}
	sd, err := envpkg.New(map[envpkg.MarketID][]envpkg.OHLCV{m: candles}, nil, nil)
	require.NoError(t, err)

	envCfg := env.DefaultConfig().WithExecutionBias(trade.Pessimistic)
	symbols := map[envpkg.MarketID]price.Symbol{m: evalTestSymbol()}

	agents := []AgentEntry{
		{UID: "trader", Agent: &oneShotLongAgent{id: "trader", market: m}},
		{UID: "idle", Agent: &noopAgent{id: "idle"}},
	}

	cfg := Config{
		Metrics:     []report.PortfolioPerformanceCol{report.NetProfit},
		TopK:        5,
		Concurrency: 2,
		RiskMetrics: report.DefaultRiskMetricsConfig(),
	}

	lb, err := Run(sd, symbols, envCfg, agents, cfg)
	require.NoError(t, err)

	entries := lb[report.NetProfit]
	require.Len(t, entries, 1) // "idle" produced no closed trades, so no NetProfit entry
	assert.Equal(t, agent.Identifier("trader"), entries[0].AgentUID)
	assert.InDelta(t, -100.0, entries[0].Reward, 1e-9)
}

func TestRunPropagatesFirstAgentError(t *testing.T) {
	sd := buildEvalSimData(t, 5)
	m := evalTestMarket()
	symbols := map[envpkg.MarketID]price.Symbol{m: evalTestSymbol()}

	agents := []AgentEntry{
		{UID: "bad", Agent: &failingAgent{id: "bad"}},
	}
	cfg := Config{Metrics: []report.PortfolioPerformanceCol{report.NetProfit}, TopK: 3, Concurrency: 1, RiskMetrics: report.DefaultRiskMetricsConfig()}

	_, err := Run(sd, symbols, env.DefaultConfig(), agents, cfg)
	assert.Error(t, err)
}
