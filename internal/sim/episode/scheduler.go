package episode

import (
	"time"

	"github.com/LenWilliamson/chapaty-sub001/internal/sim/cursor"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
)

// AdvanceToNextEpisode implements spec.md §4.D: given the episode that
// just ended, find the next calendar-aligned episode and reposition
// cur at its first available event. Returns (Episode{}, false) when
// the probe has reached or passed the end of all available data.
func AdvanceToNextEpisode(sd *event.SimulationData, cur *cursor.Cursor, current Episode) (Episode, bool) {
	probe := current.End

	if !probe.Before(globalEndOfData(sd)) {
		return Episode{}, false
	}

	cur.SeekTo(sd, probe)
	next := New(current.ID+1, current.Length, probe)
	return next, true
}

// globalEndOfData is the latest point-in-time across every stream.
func globalEndOfData(sd *event.SimulationData) time.Time {
	var latest time.Time
	for _, key := range sd.StreamOrder {
		n := sd.Len(key)
		if n == 0 {
			continue
		}
		ts := sd.PointInTimeAt(key, n-1)
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}
