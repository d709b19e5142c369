// Package episode implements calendar-aligned episode windowing and the
// scheduler that advances between episodes (spec.md §3, §4.D).
package episode

import (
	"time"
)

// Length is the calendar window an Episode spans.
type Length int

const (
	Day Length = iota
	Week
	Month
	Quarter
	SemiAnnual
	Annual
	Infinite
)

func (l Length) String() string {
	switch l {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Quarter:
		return "quarter"
	case SemiAnnual:
		return "semi_annual"
	case Annual:
		return "annual"
	case Infinite:
		return "infinite"
	default:
		return "unknown"
	}
}

// ID uniquely identifies an Episode within a run, and doubles as the
// Ledger's index into its per-episode States cells.
type ID int

// Episode is a half-open calendar window [Start, End) used to scope a
// single backtest pass over the data.
type Episode struct {
	ID     ID
	Length Length
	Start  time.Time
	End    time.Time
}

// distantFuture stands in for the Rust source's DateTime::MAX for
// Infinite-length episodes: a sentinel far enough out that no real
// market data will ever reach it.
var distantFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// New constructs the Episode starting at start with the given id and
// length, computing End per the calendar boundary rules in spec.md §3.
func New(id ID, length Length, start time.Time) Episode {
	return Episode{ID: id, Length: length, Start: start, End: endOf(start, length)}
}

// IsEpisodeEnd reports whether t has reached or passed End. Always
// false for Infinite episodes.
func (e Episode) IsEpisodeEnd(t time.Time) bool {
	if e.Length == Infinite {
		return false
	}
	return !t.Before(e.End)
}

// endOf computes the exclusive upper bound of the calendar window that
// starts at t, per spec.md §3/§4.D: Day -> next UTC midnight; Week ->
// next Monday 00:00 UTC; Month/Quarter/SemiAnnual/Annual -> first day
// of the next period at 00:00 UTC; Infinite -> the distant-future
// sentinel.
func endOf(t time.Time, length Length) time.Time {
	t = t.UTC()
	switch length {
	case Day:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return d.AddDate(0, 0, 1)
	case Week:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Go's Weekday: Sunday=0 ... Saturday=6; Monday=1.
		daysUntilMonday := (int(time.Monday) - int(d.Weekday()) + 7) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		return d.AddDate(0, 0, daysUntilMonday)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	case Quarter:
		qStartMonth := ((int(t.Month())-1)/3)*3 + 1
		return time.Date(t.Year(), time.Month(qStartMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 3, 0)
	case SemiAnnual:
		halfStartMonth := 1
		if t.Month() > 6 {
			halfStartMonth = 7
		}
		return time.Date(t.Year(), time.Month(halfStartMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 6, 0)
	case Annual:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC).AddDate(1, 0, 0)
	case Infinite:
		return distantFuture
	default:
		return distantFuture
	}
}

// MaxEpisodesPerYear is the calendar-year upper bound used to pre-size
// the Ledger for a given episode length (spec.md §4.D).
func MaxEpisodesPerYear(length Length) int {
	switch length {
	case Day:
		return 366
	case Week:
		return 53
	case Month:
		return 12
	case Quarter:
		return 4
	case SemiAnnual:
		return 2
	case Annual:
		return 1
	default: // Infinite
		return 1
	}
}
