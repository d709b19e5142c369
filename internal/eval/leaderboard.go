// Package eval implements the Evaluation Harness (spec.md §4.I): a
// bounded worker pool that runs many agents against cloned
// Environments over shared SimulationData, scores each by
// PortfolioPerformance, and folds per-worker AgentLeaderboard min-heaps
// into a final per-metric ranking. Grounded on sawpanic-cryptorun's
// fan-out-then-reduce shape (internal/infrastructure/async), adapted
// to a simpler channel-based pool since nothing in the retrieved pack
// implements a generic, deterministic worker pool (see DESIGN.md).
package eval

import (
	"container/heap"
	"sort"

	"github.com/LenWilliamson/chapaty-sub001/internal/agent"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
)

// LeaderboardEntry is one ranked slot: an agent's raw metric reward,
// the heap score it was ranked by, and (if the agent implements
// agent.ConfigSnapshotter) an owned config snapshot.
type LeaderboardEntry struct {
	AgentUID agent.Identifier
	Metric   report.PortfolioPerformanceCol
	Reward   float64
	Score    float64
	Config   any
}

type entryHeap []LeaderboardEntry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(LeaderboardEntry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// AgentLeaderboard is a bounded-capacity min-heap of LeaderboardEntry
// keyed by Score: inserting an entry with a larger score than the
// current minimum evicts that minimum once the heap is full (spec.md
// §4.I). There is no third-party priority-queue dependency anywhere in
// the retrieved pack, so this is built on the standard library's
// container/heap — see DESIGN.md.
type AgentLeaderboard struct {
	capacity int
	h        entryHeap
}

// NewAgentLeaderboard constructs an AgentLeaderboard bounded to capacity.
func NewAgentLeaderboard(capacity int) *AgentLeaderboard {
	return &AgentLeaderboard{capacity: capacity}
}

// Insert adds e, evicting the current minimum-scoring entry if already
// at capacity and e scores higher; a lower-or-equal-scoring e is
// dropped once the leaderboard is full.
func (l *AgentLeaderboard) Insert(e LeaderboardEntry) {
	if l.capacity <= 0 {
		return
	}
	if len(l.h) < l.capacity {
		heap.Push(&l.h, e)
		return
	}
	if len(l.h) > 0 && e.Score > l.h[0].Score {
		heap.Pop(&l.h)
		heap.Push(&l.h, e)
	}
}

// Entries returns the leaderboard's contents in arbitrary heap order.
func (l *AgentLeaderboard) Entries() []LeaderboardEntry {
	return append([]LeaderboardEntry(nil), l.h...)
}

// SortedEntries ranks entries by descending score, ties broken by
// ascending agent_uid — a fixed total order so replay with the same
// agent set always produces the same leaderboard (spec.md §8 property 4).
func (l *AgentLeaderboard) SortedEntries() []LeaderboardEntry {
	out := l.Entries()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AgentUID < out[j].AgentUID
	})
	return out
}

// Leaderboard is the final metric→ranked-entries map the harness returns.
type Leaderboard map[report.PortfolioPerformanceCol][]LeaderboardEntry

func newLeaderboards(metrics []report.PortfolioPerformanceCol, topK int) map[report.PortfolioPerformanceCol]*AgentLeaderboard {
	out := make(map[report.PortfolioPerformanceCol]*AgentLeaderboard, len(metrics))
	for _, m := range metrics {
		out[m] = NewAgentLeaderboard(topK)
	}
	return out
}

// scoreOf maps a raw metric value to a min-heap score: maximize
// metrics keep their value, minimize metrics are negated, so the heap
// minimum is always the correct eviction candidate (spec.md §4.I).
func scoreOf(col report.PortfolioPerformanceCol, value float64) float64 {
	if col.Maximize() {
		return value
	}
	return -value
}
