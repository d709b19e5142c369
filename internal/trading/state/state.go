// Package state implements the per-episode States cell (spec.md §4.F):
// for each market id, an insertion-ordered live (Pending+Active) and
// dead (Closed+Canceled) collection, plus the per-step reward
// accumulator. Grounded on the live/dead partitioning implicit in
// dfa/states.rs's TradeResult enum, expressed here as explicit ordered
// collections rather than one union tag per trade.
package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// ErrDuplicateTradeID is returned when a trade id already occupies the
// live collection for a market.
var ErrDuplicateTradeID = errors.New("state: trade id already live in this market")

// ErrUnknownTradeID is returned when a live-trade lookup misses.
var ErrUnknownTradeID = errors.New("state: no live trade with that id in this market")

// marketCell holds one market's live and dead trades, each ordered by
// insertion so replays are deterministic across equivalent runs.
type marketCell struct {
	liveOrder []int64
	live      map[int64]trade.Trade
	dead      []trade.Trade
}

func newMarketCell() *marketCell {
	return &marketCell{live: make(map[int64]trade.Trade)}
}

// States is the per-episode collection of market cells plus the
// accumulated step reward.
type States struct {
	cells  map[event.MarketID]*marketCell
	reward float64
}

// New constructs an empty States for one episode.
func New() *States {
	return &States{cells: make(map[event.MarketID]*marketCell)}
}

func (s *States) cell(market event.MarketID) *marketCell {
	c, ok := s.cells[market]
	if !ok {
		c = newMarketCell()
		s.cells[market] = c
	}
	return c
}

// Insert adds a freshly-opened trade (Pending or Active) to its
// market's live collection, preserving insertion order.
func (s *States) Insert(t trade.Trade) error {
	c := s.cell(t.Market)
	if _, exists := c.live[t.ID]; exists {
		return fmt.Errorf("%w: market=%s id=%d", ErrDuplicateTradeID, t.Market, t.ID)
	}
	c.live[t.ID] = t
	c.liveOrder = append(c.liveOrder, t.ID)
	return nil
}

// Get returns the live trade with the given market and id.
func (s *States) Get(market event.MarketID, id int64) (trade.Trade, bool) {
	c, ok := s.cells[market]
	if !ok {
		return trade.Trade{}, false
	}
	t, ok := c.live[id]
	return t, ok
}

// Update replaces a live trade's value in place (e.g. after Modify or
// an intrabar update that left it Active).
func (s *States) Update(t trade.Trade) error {
	c := s.cell(t.Market)
	if _, exists := c.live[t.ID]; !exists {
		return fmt.Errorf("%w: market=%s id=%d", ErrUnknownTradeID, t.Market, t.ID)
	}
	c.live[t.ID] = t
	return nil
}

// Close moves a trade from live to dead (Closed or Canceled). The
// trade's Status must already have been transitioned by the caller.
func (s *States) Close(t trade.Trade) error {
	c := s.cell(t.Market)
	if _, exists := c.live[t.ID]; !exists {
		return fmt.Errorf("%w: market=%s id=%d", ErrUnknownTradeID, t.Market, t.ID)
	}
	delete(c.live, t.ID)
	for i, id := range c.liveOrder {
		if id == t.ID {
			c.liveOrder = append(c.liveOrder[:i], c.liveOrder[i+1:]...)
			break
		}
	}
	c.dead = append(c.dead, t)
	return nil
}

// LiveTrades returns market's live trades in insertion order.
func (s *States) LiveTrades(market event.MarketID) []trade.Trade {
	c, ok := s.cells[market]
	if !ok {
		return nil
	}
	out := make([]trade.Trade, 0, len(c.liveOrder))
	for _, id := range c.liveOrder {
		out = append(out, c.live[id])
	}
	return out
}

// DeadTrades returns market's dead (terminal) trades in the order they
// closed.
func (s *States) DeadTrades(market event.MarketID) []trade.Trade {
	c, ok := s.cells[market]
	if !ok {
		return nil
	}
	return append([]trade.Trade(nil), c.dead...)
}

// Markets returns every market id that has ever held a trade in this
// States cell, in map-iteration order; callers needing a deterministic
// order should sort by event.MarketID.Less.
func (s *States) Markets() []event.MarketID {
	out := make([]event.MarketID, 0, len(s.cells))
	for m := range s.cells {
		out = append(out, m)
	}
	return out
}

// AllClosed reports whether every market's live collection is empty.
func (s *States) AllClosed() bool {
	for _, c := range s.cells {
		if len(c.liveOrder) > 0 {
			return false
		}
	}
	return true
}

// AddReward accumulates v into the per-step reward book.
func (s *States) AddReward(v float64) {
	s.reward += v
}

// PopReward atomically reads and zeroes the reward accumulator.
func (s *States) PopReward() float64 {
	r := s.reward
	s.reward = 0
	return r
}

// AllDeadTrades returns every dead trade across every market, ordered
// by event.MarketID.Less and then by each market's own close order —
// used by the Ledger to flatten Journal rows. Markets are sorted
// rather than taken in map-iteration order so that replaying the same
// action sequence twice yields the same flattening every time.
func (s *States) AllDeadTrades() []trade.Trade {
	markets := s.Markets()
	sort.Slice(markets, func(i, j int) bool { return markets[i].Less(markets[j]) })

	var out []trade.Trade
	for _, m := range markets {
		out = append(out, s.cells[m].dead...)
	}
	return out
}
