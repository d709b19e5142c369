// Package agent defines the polymorphic agent capability contract
// (spec.md §6) that the Environment and the evaluation harness drive
// against. Modeled as a small interface rather than an enum of known
// variants — spec.md §9 allows either; sawpanic-cryptorun favors
// interfaces over tagged unions wherever it has a pluggable strategy
// surface (see exits.ExitEvaluator's config-driven, not enum-driven,
// shape).
package agent

import (
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/env"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/ledger"
)

// Identifier names an agent for leaderboard and journal attribution.
type Identifier string

// Agent is the capability set every strategy under evaluation must
// implement: act on an observation, reset internal state between
// episodes, and report its own identity.
type Agent interface {
	Act(obs env.Observation) ([]ledger.Action, error)
	Reset()
	Identifier() Identifier
}

// ConfigSnapshotter is optionally implemented by an Agent to expose an
// owned, immutable copy of its configuration for leaderboard
// attribution (spec.md §4.I: "each carrying ... an owned snapshot of
// the agent configuration"). An Agent without meaningful configuration
// need not implement it.
type ConfigSnapshotter interface {
	ConfigSnapshot() any
}
