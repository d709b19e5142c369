package event

import (
	"fmt"
	"sort"
	"time"

	"github.com/LenWilliamson/chapaty-sub001/internal/simerr"
)

// StreamKind distinguishes the event kinds multiplexed by a Cursor.
type StreamKind int

const (
	CandleStream StreamKind = iota
	TradeStream
	EconStream
)

func (k StreamKind) String() string {
	switch k {
	case CandleStream:
		return "candle"
	case TradeStream:
		return "trade"
	case EconStream:
		return "econ"
	default:
		return "unknown"
	}
}

// StreamKey names one sorted event stream within a SimulationData bundle.
// Economic-calendar streams are not market-scoped, so Market is the zero
// value for StreamKind == EconStream.
type StreamKey struct {
	Market MarketID
	Kind   StreamKind
}

func (k StreamKey) String() string {
	if k.Kind == EconStream {
		return "econ"
	}
	return fmt.Sprintf("%s/%s", k.Market, k.Kind)
}

// Less gives StreamKey a fixed total order, used to break point-in-time
// ties deterministically (spec.md §4.C).
func (k StreamKey) Less(o StreamKey) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.Market.Less(o.Market)
}

// SimulationData is the immutable, shared-by-reference bundle of sorted
// event streams a simulation run replays against (spec.md §3).
type SimulationData struct {
	Candles map[MarketID][]OHLCV
	Trades  map[MarketID][]Trade
	Econ    []EconCalendar

	// StreamOrder is the fixed, deterministic ordering over every
	// non-empty stream key, used to break simultaneous-timestamp ties.
	StreamOrder []StreamKey

	GlobalAvailabilityStart time.Time
	GlobalOpenStart         time.Time
}

// New validates and assembles a SimulationData bundle. Every stream
// must already be sorted ascending by point-in-time; an unsorted stream
// is a fatal DataError (spec.md §7) rather than something the cursor
// silently fixes.
func New(candles map[MarketID][]OHLCV, trades map[MarketID][]Trade, econ []EconCalendar) (*SimulationData, error) {
	sd := &SimulationData{Candles: candles, Trades: trades, Econ: econ}

	var earliest, earliestOpen time.Time
	have := false

	addKey := func(key StreamKey, n int) {
		if n == 0 {
			return
		}
		sd.StreamOrder = append(sd.StreamOrder, key)
	}

	for m, cs := range candles {
		if err := checkSortedCandles(cs); err != nil {
			return nil, fmt.Errorf("%w: market %s candle stream: %v", simerr.ErrData, m, err)
		}
		addKey(StreamKey{Market: m, Kind: CandleStream}, len(cs))
		if len(cs) > 0 {
			if !have || cs[0].CloseTS.Before(earliest) {
				earliest = cs[0].CloseTS
				have = true
			}
			if earliestOpen.IsZero() || cs[0].OpenTS.Before(earliestOpen) {
				earliestOpen = cs[0].OpenTS
			}
		}
	}
	for m, ts := range trades {
		if err := checkSortedTrades(ts); err != nil {
			return nil, fmt.Errorf("%w: market %s trade stream: %v", simerr.ErrData, m, err)
		}
		addKey(StreamKey{Market: m, Kind: TradeStream}, len(ts))
		if len(ts) > 0 && (!have || ts[0].Timestamp.Before(earliest)) {
			earliest = ts[0].Timestamp
			have = true
		}
	}
	if err := checkSortedEcon(econ); err != nil {
		return nil, fmt.Errorf("%w: econ calendar stream: %v", simerr.ErrData, err)
	}
	addKey(StreamKey{Kind: EconStream}, len(econ))
	if len(econ) > 0 && (!have || econ[0].EventTimestamp.Before(earliest)) {
		earliest = econ[0].EventTimestamp
		have = true
	}

	sort.Slice(sd.StreamOrder, func(i, j int) bool { return sd.StreamOrder[i].Less(sd.StreamOrder[j]) })

	sd.GlobalAvailabilityStart = earliest
	sd.GlobalOpenStart = earliestOpen
	return sd, nil
}

// Len reports the number of events in the named stream.
func (sd *SimulationData) Len(key StreamKey) int {
	switch key.Kind {
	case CandleStream:
		return len(sd.Candles[key.Market])
	case TradeStream:
		return len(sd.Trades[key.Market])
	default:
		return len(sd.Econ)
	}
}

// PointInTimeAt returns the point-in-time of the i'th event in the
// named stream.
func (sd *SimulationData) PointInTimeAt(key StreamKey, i int) time.Time {
	switch key.Kind {
	case CandleStream:
		return sd.Candles[key.Market][i].CloseTS
	case TradeStream:
		return sd.Trades[key.Market][i].Timestamp
	default:
		return sd.Econ[i].EventTimestamp
	}
}

// CandleAt returns the i'th candle of a market's candle stream.
func (sd *SimulationData) CandleAt(market MarketID, i int) OHLCV {
	return sd.Candles[market][i]
}

func checkSortedCandles(cs []OHLCV) error {
	for i, c := range cs {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if i > 0 && cs[i-1].CloseTS.After(c.CloseTS) {
			return fmt.Errorf("event: stream is not sorted ascending at index %d", i)
		}
	}
	return nil
}

func checkSortedTrades(ts []Trade) error {
	for i := 1; i < len(ts); i++ {
		if ts[i-1].Timestamp.After(ts[i].Timestamp) {
			return fmt.Errorf("event: stream is not sorted ascending at index %d", i)
		}
	}
	return nil
}

func checkSortedEcon(es []EconCalendar) error {
	for i := 1; i < len(es); i++ {
		if es[i-1].EventTimestamp.After(es[i].EventTimestamp) {
			return fmt.Errorf("event: stream is not sorted ascending at index %d", i)
		}
	}
	return nil
}
