package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// marketDataset is the on-disk shape a backtest/eval/profile run loads
// its candle streams from: one entry per market, each carrying the
// instrument's price grid alongside its candles. There is no live
// provider wiring on this path (no CLI command uses provider.Client) —
// a dataset file is the input a researcher already has in hand.
type marketDataset struct {
	Markets []marketDatasetEntry `json:"markets"`
}

type marketDatasetEntry struct {
	Broker   string            `json:"broker"`
	Exchange string            `json:"exchange"`
	Symbol   string            `json:"symbol"`
	Period   string            `json:"period"` // parsed by time.ParseDuration, e.g. "1m"

	SymbolSpec symbolSpec `json:"symbol_spec"`
	Candles    []candleJSON `json:"candles"`
}

type symbolSpec struct {
	Kind          string  `json:"kind"` // "spot" | "futures"
	Base          string  `json:"base"`
	Quote         string  `json:"quote"`
	Root          string  `json:"root"`
	ContractMonth int     `json:"contract_month"`
	ContractYear  int     `json:"contract_year"`
	TickSize      float64 `json:"tick_size"`
	TickValueUSD  float64 `json:"tick_value_usd"`
	LotSize       float64 `json:"lot_size"`
}

func (s symbolSpec) toSymbol() (price.Symbol, error) {
	sym := price.Symbol{
		Base: s.Base, Quote: s.Quote,
		Root: s.Root, ContractMonth: s.ContractMonth, ContractYear: s.ContractYear,
		TickSize: s.TickSize, TickValueUSD: s.TickValueUSD, LotSize: s.LotSize,
	}
	switch s.Kind {
	case "spot", "":
		sym.Kind = price.Spot
	case "futures":
		sym.Kind = price.Futures
	default:
		return price.Symbol{}, fmt.Errorf("dataset: unknown symbol kind %q", s.Kind)
	}
	if sym.TickSize <= 0 {
		return price.Symbol{}, fmt.Errorf("dataset: symbol %s: tick_size must be positive", sym)
	}
	return sym, nil
}

type candleJSON struct {
	OpenTS  time.Time `json:"open_ts"`
	CloseTS time.Time `json:"close_ts"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	Volume  float64   `json:"volume"`
}

func (c candleJSON) toOHLCV() event.OHLCV {
	return event.OHLCV{
		OpenTS: c.OpenTS, CloseTS: c.CloseTS,
		Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
	}
}

// loadDataset reads a marketDataset file and assembles the
// SimulationData + per-market Symbol map an Environment needs.
func loadDataset(path string) (*event.SimulationData, map[event.MarketID]price.Symbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}

	var ds marketDataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	if len(ds.Markets) == 0 {
		return nil, nil, fmt.Errorf("dataset: %s has no markets", path)
	}

	candles := make(map[event.MarketID][]event.OHLCV, len(ds.Markets))
	symbols := make(map[event.MarketID]price.Symbol, len(ds.Markets))

	for _, m := range ds.Markets {
		period, err := time.ParseDuration(m.Period)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: market %s/%s: period: %w", m.Exchange, m.Symbol, err)
		}
		id := event.MarketID{Broker: m.Broker, Exchange: m.Exchange, Symbol: m.Symbol, Period: event.Period(period)}

		sym, err := m.SymbolSpec.toSymbol()
		if err != nil {
			return nil, nil, fmt.Errorf("dataset: market %s: %w", id, err)
		}
		symbols[id] = sym

		cs := make([]event.OHLCV, len(m.Candles))
		for i, c := range m.Candles {
			cs[i] = c.toOHLCV()
		}
		candles[id] = cs
	}

	sd, err := event.New(candles, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return sd, symbols, nil
}

// sortedMarketIDs returns m's keys in MarketID.Less order, so CLI
// output that enumerates markets is deterministic run to run.
func sortedMarketIDs(m map[event.MarketID]price.Symbol) []event.MarketID {
	out := make([]event.MarketID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
