// Package simerr names the error kinds from spec.md §7 as sentinel
// values usable with errors.Is, rather than distinct types — the
// teacher's own codebase never reaches for a third-party error
// library (no github.com/pkg/errors or similar appears anywhere in
// the retrieved dependency set), wrapping plain fmt.Errorf/%w chains
// throughout its provider and exit-evaluation code instead.
package simerr

import "errors"

var (
	// ErrInvalidState is EnvError::InvalidState: step/reset called in
	// a disallowed lifecycle state. Non-fatal to the process.
	ErrInvalidState = errors.New("env: invalid state for this call")

	// ErrData is DataError: malformed simulation data. Fatal at
	// SimulationData construction.
	ErrData = errors.New("data: malformed simulation data")

	// ErrInvariantViolation is SystemError::InvariantViolation: a
	// state the code believes impossible. Callers at the Environment
	// boundary should treat this as a crash-equivalent, not retry it.
	ErrInvariantViolation = errors.New("system: invariant violation")

	// ErrIO is IoError: cache read/write failures. Caller-controlled;
	// the core does not retry.
	ErrIO = errors.New("io: cache read/write failure")
)
