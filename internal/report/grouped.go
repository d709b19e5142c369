package report

import (
	"sort"
	"strconv"
)

// GroupCol enumerates the columns a Journal may be partitioned by
// (spec.md §4.J, ported from original_source's grouped.rs GroupCol).
// Continuous columns (price, PnL) and row-unique identifiers (RowID)
// are deliberately excluded — grouping by them would produce one
// singleton group per row.
type GroupCol uint8

const (
	GroupEpisodeID GroupCol = iota
	GroupTradeState
	GroupAgentID
	GroupDataBroker
	GroupExchange
	GroupSymbol
	GroupMarketType
	GroupTradeType
	GroupEntryYear
	GroupEntryMonth
	GroupEntryWeekday
	GroupExitReason
)

var groupColNames = map[GroupCol]string{
	GroupEpisodeID:     "episode_id",
	GroupTradeState:    "trade_state",
	GroupAgentID:       "agent_id",
	GroupDataBroker:    "data_broker",
	GroupExchange:      "exchange",
	GroupSymbol:        "symbol",
	GroupMarketType:    "market_type",
	GroupTradeType:     "trade_type",
	GroupEntryYear:     "entry_year",
	GroupEntryMonth:    "entry_month",
	GroupEntryWeekday:  "entry_weekday",
	GroupExitReason:    "exit_reason",
}

func (c GroupCol) String() string {
	if s, ok := groupColNames[c]; ok {
		return s
	}
	return "unknown"
}

// key extracts r's value for this group column as a comparable string,
// materializing the "virtual" time-derived columns (entry_year etc.)
// the way grouped.rs's GroupCol::as_expr does.
func (c GroupCol) key(r Row) string {
	switch c {
	case GroupEpisodeID:
		return strconv.FormatUint(uint64(r.EpisodeID), 10)
	case GroupTradeState:
		return r.TradeState
	case GroupAgentID:
		return r.AgentID
	case GroupDataBroker:
		return r.DataBroker
	case GroupExchange:
		return r.Exchange
	case GroupSymbol:
		return r.Symbol
	case GroupMarketType:
		return r.MarketType
	case GroupTradeType:
		return r.TradeType
	case GroupEntryYear:
		return strconv.Itoa(r.EntryTimestamp.Year())
	case GroupEntryMonth:
		return strconv.Itoa(int(r.EntryTimestamp.Month()))
	case GroupEntryWeekday:
		return strconv.Itoa(int(r.EntryTimestamp.Weekday()))
	case GroupExitReason:
		return r.ExitReason
	default:
		return ""
	}
}

// Group is one partition produced by GroupedJournal: the key values
// (one per group column, same order as the grouping) and the member
// rows, which keep their Journal-relative order.
type Group struct {
	Keys []string
	Rows []Row
}

// GroupedJournal is a Journal partitioned by one or more GroupCols. It
// supports the same derived reports as a plain Journal, computed once
// per partition (spec.md §4.J).
type GroupedJournal struct {
	source Journal
	cols   []GroupCol
	groups []Group
}

// GroupBy partitions j by cols, ordering the resulting groups by
// ascending composite key (spec.md §3's determinism requirement —
// "ascending key, ties broken by first-seen row order"; since each
// group's composite key is unique by construction, no two groups can
// tie, so key order alone fully determines the result). Rows within a
// group keep the Journal's own order regardless of the group's
// position in the result.
func GroupBy(j Journal, cols ...GroupCol) GroupedJournal {
	index := map[string]int{}
	var groups []Group
	var composites []string

	for _, r := range j.Rows() {
		keys := make([]string, len(cols))
		composite := ""
		for i, c := range cols {
			keys[i] = c.key(r)
			composite += "\x1f" + keys[i]
		}
		idx, ok := index[composite]
		if !ok {
			idx = len(groups)
			index[composite] = idx
			groups = append(groups, Group{Keys: keys})
			composites = append(composites, composite)
		}
		groups[idx].Rows = append(groups[idx].Rows, r)
	}

	type keyedGroup struct {
		composite string
		group     Group
	}
	keyed := make([]keyedGroup, len(groups))
	for i, g := range groups {
		keyed[i] = keyedGroup{composite: composites[i], group: g}
	}
	sort.Slice(keyed, func(a, b int) bool { return keyed[a].composite < keyed[b].composite })

	sorted := make([]Group, len(keyed))
	for i, kg := range keyed {
		sorted[i] = kg.group
	}

	return GroupedJournal{source: j, cols: cols, groups: sorted}
}

// Source returns the ungrouped Journal this GroupedJournal was built from.
func (g GroupedJournal) Source() Journal {
	return g.source
}

// Columns returns the group-by column set, in grouping order.
func (g GroupedJournal) Columns() []GroupCol {
	return append([]GroupCol(nil), g.cols...)
}

// Groups returns the partitions, in ascending composite-key order.
func (g GroupedJournal) Groups() []Group {
	return g.groups
}

// TradeStatistics computes one TradeStatistics per group, in group order.
func (g GroupedJournal) TradeStatistics() ([]TradeStatistics, error) {
	out := make([]TradeStatistics, len(g.groups))
	for i, grp := range g.groups {
		j, err := NewJournal(SortRows(grp.Rows))
		if err != nil {
			return nil, err
		}
		out[i] = ComputeTradeStatistics(j)
	}
	return out, nil
}

// PortfolioPerformance computes one PortfolioPerformance per group, in
// group order. referenceCurve, if non-nil, is reused unsliced for every
// group (a per-group reference curve is a caller concern).
func (g GroupedJournal) PortfolioPerformance(cfg RiskMetricsConfig, referenceCurve []float64) ([]PortfolioPerformance, error) {
	out := make([]PortfolioPerformance, len(g.groups))
	for i, grp := range g.groups {
		j, err := NewJournal(SortRows(grp.Rows))
		if err != nil {
			return nil, err
		}
		out[i] = ComputePortfolioPerformance(j, cfg, referenceCurve)
	}
	return out, nil
}

// CumulativeReturns computes cumulative returns per group and
// concatenates them back into one row-preserving slice, group order
// outer, row order inner — the N -> N transform (spec.md §3).
func (g GroupedJournal) CumulativeReturns(cfg RiskMetricsConfig) ([]CumulativeReturn, error) {
	var out []CumulativeReturn
	for _, grp := range g.groups {
		j, err := NewJournal(SortRows(grp.Rows))
		if err != nil {
			return nil, err
		}
		out = append(out, ComputeCumulativeReturns(j, cfg)...)
	}
	return out, nil
}
