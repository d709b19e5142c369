// Package telemetry wires process-wide structured logging, following
// cmd/cryptorun/main.go's zerolog setup: a console writer to stderr
// with kitchen-clock timestamps in interactive mode, JSON with RFC3339
// timestamps otherwise, and a run id attached to every subsequent log
// line.
package telemetry

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunID is a non-deterministic operational identifier for log
// correlation (SPEC_FULL.md §1 "IDs") — it never feeds
// the deterministic core, which keys everything by small integers.
type RunID string

// NewRunID mints a fresh RunID.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Init configures the global zerolog logger. interactive selects a
// human-readable console writer (matching cryptorun's TTY path);
// non-interactive runs get structured JSON on stderr, suited to being
// shipped to a log aggregator.
func Init(interactive bool, runID RunID) {
	zerolog.TimeFieldFormat = time.RFC3339

	var base zerolog.Logger
	if interactive {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		base = zerolog.New(os.Stderr)
	}
	log.Logger = base.With().Timestamp().Str("run_id", string(runID)).Logger()
}
