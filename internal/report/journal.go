// Package report implements the Journal columnar output and its
// derived PortfolioPerformance / TradeStatistics / CumulativeReturns
// aggregations (spec.md §4.J, §6). Grounded on the grouped-aggregation
// style of original_source/src/report — row-preserving transforms keep
// one row per input, aggregations collapse to one row per group.
package report

import (
	"errors"
	"sort"
	"time"
)

// Row is one Journal line: a single closed (dead) trade flattened to
// its final, terminal-state snapshot (spec.md §6's Journal columns).
type Row struct {
	RowID     uint32
	EpisodeID uint32
	TradeID   int64

	TradeState string // terminal state name: "closed" or "canceled"
	AgentID    string

	DataBroker string
	Exchange   string
	Symbol     string
	MarketType string

	TradeType string // "long" / "short"

	EntryPrice     float64
	StopLossPrice  float64
	TakeProfitPrice float64
	ExitPrice      float64
	Quantity       float64

	ExpectedLossInTicks   int64
	ExpectedProfitInTicks int64
	RealizedReturnInTicks int64

	ExpectedLossDollars   float64
	ExpectedProfitDollars float64
	RealizedReturnDollars float64

	RiskRewardRatio float64

	EntryTimestamp time.Time
	ExitTimestamp  time.Time

	ExitReason string // take_profit / stop_loss / market_close / canceled / pivot
}

// ErrNotSorted is returned by NewJournal when rows are not ascending by
// EntryTimestamp.
var ErrNotSorted = errors.New("report: journal rows are not sorted by entry_timestamp")

// Journal is the immutable, sorted Journal table (spec.md §6: "sort
// flag is asserted on construction").
type Journal struct {
	rows []Row
}

// NewJournal validates rows are ascending by EntryTimestamp and wraps
// them in an immutable Journal. Rows with a zero EntryTimestamp (e.g. a
// Canceled trade that never filled) sort first, matching time.Time's
// natural zero-value ordering.
func NewJournal(rows []Row) (Journal, error) {
	for i := 1; i < len(rows); i++ {
		if rows[i].EntryTimestamp.Before(rows[i-1].EntryTimestamp) {
			return Journal{}, ErrNotSorted
		}
	}
	return Journal{rows: append([]Row(nil), rows...)}, nil
}

// SortRows returns a copy of rows sorted ascending by EntryTimestamp,
// stable so that same-timestamp rows keep their relative order — the
// preparation step NewJournal's callers run before construction.
func SortRows(rows []Row) []Row {
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTimestamp.Before(sorted[j].EntryTimestamp)
	})
	return sorted
}

// Rows returns the Journal's rows. The returned slice must not be
// mutated by callers; Journal is otherwise immutable after construction.
func (j Journal) Rows() []Row {
	return j.rows
}

// Len is the row count.
func (j Journal) Len() int {
	return len(j.rows)
}

// AsDF round-trips the Journal back into its row slice — named to
// mirror the Ledger's as_df() Journal emission (spec.md §4.G); for a
// Go columnar table this is simply Rows(), but kept as a distinct
// method so a future real dataframe backend can swap in without
// touching callers.
func (j Journal) AsDF() []Row {
	return j.Rows()
}
