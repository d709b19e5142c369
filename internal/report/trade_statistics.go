package report

import (
	"sort"
	"time"
)

// TradeStatCol enumerates the scalar fields of TradeStatistics (spec.md
// §4.J), ported from original_source's trade_statistics.rs column list.
type TradeStatCol uint8

const (
	WinningTradeCount TradeStatCol = iota
	LosingTradeCount
	TotalTradeCount
	MaxConsecutiveWins
	MaxConsecutiveLosses
	MaxConsecutiveUnrealizedWins
	MaxConsecutiveUnrealizedLosses
	AvgTradeDuration
	MedianTradeDuration
	MinTradeDuration
	MaxTradeDuration
	LowerQuantileTradeDuration
	UpperQuantileTradeDuration
	AvgWinDuration
	MedianWinDuration
	LowerQuantileWinDuration
	UpperQuantileWinDuration
	AvgLossDuration
	MedianLossDuration
	LowerQuantileLossDuration
	UpperQuantileLossDuration
	UnrealizedWinCount
	UnrealizedLossCount
	UnrealizedTradeCount
	LongTradeCount
	ShortTradeCount
)

var tradeStatColNames = map[TradeStatCol]string{
	WinningTradeCount:              "winning_trade_count",
	LosingTradeCount:               "losing_trade_count",
	TotalTradeCount:                "total_trade_count",
	MaxConsecutiveWins:             "max_consecutive_wins",
	MaxConsecutiveLosses:           "max_consecutive_losses",
	MaxConsecutiveUnrealizedWins:   "max_consecutive_unrealized_wins",
	MaxConsecutiveUnrealizedLosses: "max_consecutive_unrealized_losses",
	AvgTradeDuration:               "avg_trade_duration",
	MedianTradeDuration:            "median_trade_duration",
	MinTradeDuration:               "min_trade_duration",
	MaxTradeDuration:               "max_trade_duration",
	LowerQuantileTradeDuration:     "lower_quantile_trade_duration",
	UpperQuantileTradeDuration:     "upper_quantile_trade_duration",
	AvgWinDuration:                 "avg_win_duration",
	MedianWinDuration:              "median_win_duration",
	LowerQuantileWinDuration:       "lower_quantile_win_duration",
	UpperQuantileWinDuration:       "upper_quantile_win_duration",
	AvgLossDuration:                "avg_loss_duration",
	MedianLossDuration:             "median_loss_duration",
	LowerQuantileLossDuration:      "lower_quantile_loss_duration",
	UpperQuantileLossDuration:      "upper_quantile_loss_duration",
	UnrealizedWinCount:             "unrealized_win_count",
	UnrealizedLossCount:            "unrealized_loss_count",
	UnrealizedTradeCount:           "unrealized_trade_count",
	LongTradeCount:                 "long_trade_count",
	ShortTradeCount:                "short_trade_count",
}

func (c TradeStatCol) String() string {
	if s, ok := tradeStatColNames[c]; ok {
		return s
	}
	return "unknown"
}

// TradeStatistics is the single-row count/streak/duration summary of a
// Journal (spec.md §4.J). Count-valued columns read back through Count;
// duration-valued columns through Duration. A zero-trade Journal yields
// the zero value of every field.
//
// original_source also tracks PendingCount/LongestPendingStreak, but a
// Journal here only ever carries terminal (Closed/Canceled) rows — a
// Pending trade never reaches report.Row — so those two columns have no
// Go analogue and are dropped rather than hard-coded to zero.
type TradeStatistics struct {
	counts    map[TradeStatCol]uint32
	durations map[TradeStatCol]time.Duration
	n         int
}

// Count returns a count-valued column.
func (s TradeStatistics) Count(col TradeStatCol) uint32 {
	return s.counts[col]
}

// Duration returns a duration-valued column.
func (s TradeStatistics) Duration(col TradeStatCol) time.Duration {
	return s.durations[col]
}

// TradeCount is the number of Closed rows the statistics were computed over.
func (s TradeStatistics) TradeCount() int {
	return s.n
}

// ComputeTradeStatistics derives TradeStatistics from a Journal's Closed
// rows, in Journal row order (ascending entry_timestamp).
func ComputeTradeStatistics(j Journal) TradeStatistics {
	var rows []Row
	for _, r := range j.Rows() {
		if r.TradeState == "closed" {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return TradeStatistics{counts: map[TradeStatCol]uint32{}, durations: map[TradeStatCol]time.Duration{}}
	}

	counts := map[TradeStatCol]uint32{TotalTradeCount: uint32(len(rows))}
	durations := map[TradeStatCol]time.Duration{}

	var allDur, winDur, lossDur []time.Duration
	var wins, losses, longs, shorts, unrealizedWins, unrealizedLosses uint32

	for _, r := range rows {
		dur := r.ExitTimestamp.Sub(r.EntryTimestamp)
		allDur = append(allDur, dur)

		switch r.TradeType {
		case "long":
			longs++
		case "short":
			shorts++
		}

		unrealized := r.ExitReason == "market_close"
		switch {
		case r.RealizedReturnDollars > 0:
			wins++
			winDur = append(winDur, dur)
			if unrealized {
				unrealizedWins++
			}
		case r.RealizedReturnDollars < 0:
			losses++
			lossDur = append(lossDur, dur)
			if unrealized {
				unrealizedLosses++
			}
		}
	}

	counts[WinningTradeCount] = wins
	counts[LosingTradeCount] = losses
	counts[LongTradeCount] = longs
	counts[ShortTradeCount] = shorts
	counts[UnrealizedWinCount] = unrealizedWins
	counts[UnrealizedLossCount] = unrealizedLosses
	counts[UnrealizedTradeCount] = unrealizedWins + unrealizedLosses

	wStreak, lStreak := consecutiveStreaks(rows)
	counts[MaxConsecutiveWins] = wStreak
	counts[MaxConsecutiveLosses] = lStreak
	uwStreak, ulStreak := consecutiveUnrealizedStreaks(rows)
	counts[MaxConsecutiveUnrealizedWins] = uwStreak
	counts[MaxConsecutiveUnrealizedLosses] = ulStreak

	durations[AvgTradeDuration] = avgDuration(allDur)
	durations[MedianTradeDuration] = quantileDuration(allDur, 0.5)
	durations[MinTradeDuration] = minDuration(allDur)
	durations[MaxTradeDuration] = maxDuration(allDur)
	durations[LowerQuantileTradeDuration] = quantileDuration(allDur, 0.25)
	durations[UpperQuantileTradeDuration] = quantileDuration(allDur, 0.75)

	durations[AvgWinDuration] = avgDuration(winDur)
	durations[MedianWinDuration] = quantileDuration(winDur, 0.5)
	durations[LowerQuantileWinDuration] = quantileDuration(winDur, 0.25)
	durations[UpperQuantileWinDuration] = quantileDuration(winDur, 0.75)

	durations[AvgLossDuration] = avgDuration(lossDur)
	durations[MedianLossDuration] = quantileDuration(lossDur, 0.5)
	durations[LowerQuantileLossDuration] = quantileDuration(lossDur, 0.25)
	durations[UpperQuantileLossDuration] = quantileDuration(lossDur, 0.75)

	return TradeStatistics{counts: counts, durations: durations, n: len(rows)}
}

// consecutiveStreaks returns the longest run of consecutive winning and
// consecutive losing rows, in Journal order.
func consecutiveStreaks(rows []Row) (maxWin, maxLoss uint32) {
	var curWin, curLoss uint32
	for _, r := range rows {
		switch {
		case r.RealizedReturnDollars > 0:
			curWin++
			curLoss = 0
		case r.RealizedReturnDollars < 0:
			curLoss++
			curWin = 0
		default:
			curWin, curLoss = 0, 0
		}
		if curWin > maxWin {
			maxWin = curWin
		}
		if curLoss > maxLoss {
			maxLoss = curLoss
		}
	}
	return
}

func consecutiveUnrealizedStreaks(rows []Row) (maxWin, maxLoss uint32) {
	var curWin, curLoss uint32
	for _, r := range rows {
		unrealized := r.ExitReason == "market_close"
		switch {
		case unrealized && r.RealizedReturnDollars > 0:
			curWin++
			curLoss = 0
		case unrealized && r.RealizedReturnDollars < 0:
			curLoss++
			curWin = 0
		default:
			curWin, curLoss = 0, 0
		}
		if curWin > maxWin {
			maxWin = curWin
		}
		if curLoss > maxLoss {
			maxLoss = curLoss
		}
	}
	return
}

func avgDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

func minDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	m := ds[0]
	for _, d := range ds[1:] {
		if d < m {
			m = d
		}
	}
	return m
}

func maxDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	m := ds[0]
	for _, d := range ds[1:] {
		if d > m {
			m = d
		}
	}
	return m
}

func quantileDuration(ds []time.Duration, q float64) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	xs := make([]float64, len(ds))
	for i, d := range ds {
		xs[i] = float64(d)
	}
	sort.Float64s(xs)
	return time.Duration(quantile(xs, q))
}
