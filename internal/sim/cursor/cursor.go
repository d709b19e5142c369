// Package cursor implements the group-cursor over SimulationData's
// heterogeneous, time-ordered streams (spec.md §4.C).
//
// Design note (documented open question from spec.md §9): a stream's
// index always points at its *current* head — the latest event that
// has "arrived" for that stream — not at a not-yet-revealed next
// event. At construction every stream is primed to its first event
// (index 0), matching a backtest's warm first bar being observable
// before any decision is made. Step() then finds the stream whose head
// is furthest behind in time (the minimum across all non-exhausted
// heads) and rolls it forward to its next event, which is how the
// simulation clock advances. A stream that runs out of events freezes
// at its last head rather than disappearing, so a market's last-known
// price remains queryable after its feed ends.
package cursor

import (
	"sort"
	"time"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// Cursor is the per-environment, exclusively-owned read position over a
// shared SimulationData.
type Cursor struct {
	index     map[event.StreamKey]int
	exhausted map[event.StreamKey]bool
	currentTS time.Time
}

// New creates a Cursor primed to the first event of every stream in sd.
func New(sd *event.SimulationData) *Cursor {
	c := &Cursor{
		index:     make(map[event.StreamKey]int, len(sd.StreamOrder)),
		exhausted: make(map[event.StreamKey]bool, len(sd.StreamOrder)),
	}
	c.Reset(sd)
	return c
}

// Reset repositions the cursor to the first event of every stream.
func (c *Cursor) Reset(sd *event.SimulationData) {
	for k := range c.index {
		delete(c.index, k)
	}
	for k := range c.exhausted {
		delete(c.exhausted, k)
	}
	for _, key := range sd.StreamOrder {
		c.index[key] = 0
		c.exhausted[key] = sd.Len(key) == 0
	}
	c.currentTS = c.recomputeCurrentTS(sd)
}

// CurrentTS is the point-in-time of the event at the cursor's head — a
// virtual join across every stream.
func (c *Cursor) CurrentTS() time.Time {
	return c.currentTS
}

// IsEndOfData reports whether every stream has been fully consumed.
func (c *Cursor) IsEndOfData() bool {
	for _, done := range c.exhausted {
		if !done {
			return false
		}
	}
	return true
}

// HeadIndex returns the index of key's current head event.
func (c *Cursor) HeadIndex(key event.StreamKey) (int, bool) {
	idx, ok := c.index[key]
	return idx, ok
}

// Step advances exactly one stream head — the one whose head has the
// minimum point-in-time among non-exhausted streams — unless the
// cursor has already reached or passed episodeEnd, or the data is
// exhausted. Returns true if a head was advanced.
func (c *Cursor) Step(sd *event.SimulationData, episodeEnd time.Time) bool {
	if !c.currentTS.Before(episodeEnd) || c.IsEndOfData() {
		return false
	}

	leader, ok := c.findLeader(sd)
	if !ok {
		return false
	}

	newIdx := c.index[leader] + 1
	if newIdx >= sd.Len(leader) {
		c.exhausted[leader] = true
	} else {
		c.index[leader] = newIdx
	}

	c.currentTS = c.recomputeCurrentTS(sd)
	return true
}

// findLeader returns the non-exhausted stream whose current head has
// the minimum point-in-time, ties broken by the fixed stream order.
func (c *Cursor) findLeader(sd *event.SimulationData) (event.StreamKey, bool) {
	var leader event.StreamKey
	var leaderTS time.Time
	found := false

	for _, key := range sd.StreamOrder {
		if c.exhausted[key] {
			continue
		}
		ts := sd.PointInTimeAt(key, c.index[key])
		if !found || ts.Before(leaderTS) {
			leader, leaderTS, found = key, ts, true
		}
	}
	return leader, found
}

func (c *Cursor) recomputeCurrentTS(sd *event.SimulationData) time.Time {
	var best time.Time
	found := false

	for _, key := range sd.StreamOrder {
		if c.exhausted[key] {
			continue
		}
		ts := sd.PointInTimeAt(key, c.index[key])
		if !found || ts.Before(best) {
			best, found = ts, true
		}
	}
	if found {
		return best
	}

	// Every stream exhausted: freeze at the latest known timestamp.
	for _, key := range sd.StreamOrder {
		n := sd.Len(key)
		if n == 0 {
			continue
		}
		ts := sd.PointInTimeAt(key, n-1)
		if ts.After(best) {
			best = ts
		}
	}
	return best
}

// SeekTo fast-forwards every stream so its head is the first event
// with point-in-time >= t (or exhausted, if no such event exists),
// used by the episode scheduler to position the cursor at the start of
// the next episode (spec.md §4.D).
func (c *Cursor) SeekTo(sd *event.SimulationData, t time.Time) {
	for _, key := range sd.StreamOrder {
		n := sd.Len(key)
		idx := sort.Search(n, func(i int) bool {
			return !sd.PointInTimeAt(key, i).Before(t)
		})
		if idx >= n {
			// No event at or after t: freeze on the last known event.
			if n > 0 {
				c.index[key] = n - 1
			}
			c.exhausted[key] = true
			continue
		}
		c.index[key] = idx
		c.exhausted[key] = false
	}
	c.currentTS = c.recomputeCurrentTS(sd)
}

// LatestCandle returns the current head candle for market, and whether
// one has been observed at all (false if the market's candle stream is
// empty).
func (c *Cursor) LatestCandle(sd *event.SimulationData, market event.MarketID) (event.OHLCV, bool) {
	key := event.StreamKey{Market: market, Kind: event.CandleStream}
	idx, ok := c.index[key]
	if !ok || sd.Len(key) == 0 {
		return event.OHLCV{}, false
	}
	return sd.CandleAt(market, idx), true
}
