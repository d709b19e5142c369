// Package env implements the Gym-style Environment lifecycle (spec.md
// §4.H): Ready/Running/EpisodeDone/Done, reset()/step() with the exact
// phase sequence from the language-neutral blueprint, ported in the
// style of sawpanic-cryptorun's builder-configured evaluators (see
// exits.ExitEvaluator / DefaultExitConfig).
package env

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/cursor"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/episode"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/simerr"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/ledger"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

// Status is the Environment's lifecycle state.
type Status uint8

const (
	Ready Status = iota
	Running
	EpisodeDone
	Done
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case EpisodeDone:
		return "episode_done"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// StepOutcome classifies the result of one step.
type StepOutcome uint8

const (
	InProgress StepOutcome = iota
	Truncated
	Terminated
)

func (o StepOutcome) String() string {
	switch o {
	case InProgress:
		return "in_progress"
	case Truncated:
		return "truncated"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Observation is the agent-visible state at a point in time: the
// current timestamp, MarketView and episode. It carries no view of the
// Ledger's live or dead trades.
type Observation struct {
	CurrentTS  time.Time
	MarketView ledger.MarketView
	Episode    episode.Episode
}

// Config carries every builder-settable option from spec.md §6's
// configuration table.
type Config struct {
	ExecutionBias        trade.ExecutionBias
	InvalidActionPenalty float64
	EpisodeLength        episode.Length
}

// DefaultConfig mirrors exits.DefaultExitConfig's role: a
// production-ready starting point callers narrow with With* builders.
func DefaultConfig() Config {
	return Config{
		ExecutionBias:        trade.Pessimistic,
		InvalidActionPenalty: -1.0,
		EpisodeLength:        episode.Day,
	}
}

// WithExecutionBias returns a copy of c with ExecutionBias set.
func (c Config) WithExecutionBias(b trade.ExecutionBias) Config {
	c.ExecutionBias = b
	return c
}

// WithInvalidActionPenalty returns a copy of c with InvalidActionPenalty set.
func (c Config) WithInvalidActionPenalty(p float64) Config {
	c.InvalidActionPenalty = p
	return c
}

// WithEpisodeLength returns a copy of c with EpisodeLength set.
func (c Config) WithEpisodeLength(l episode.Length) Config {
	c.EpisodeLength = l
	return c
}

// Environment is the single-threaded, deterministic simulation loop
// (spec.md §4.H). One Environment instance exclusively owns its
// Cursor, Ledger and Episode; SimulationData is shared by reference.
type Environment struct {
	sd     *event.SimulationData
	cur    *cursor.Cursor
	ledger *ledger.Ledger
	cfg    Config

	ep     episode.Episode
	status Status

	initialEp episode.Episode
}

// New constructs an Environment in the Ready state, seeded at the
// first episode beginning at sd.GlobalOpenStart.
func New(sd *event.SimulationData, symbols map[event.MarketID]price.Symbol, cfg Config) *Environment {
	initial := episode.New(0, cfg.EpisodeLength, sd.GlobalOpenStart)
	return &Environment{
		sd:        sd,
		cur:       cursor.New(sd),
		ledger:    ledger.New(symbols, cfg.ExecutionBias, cfg.InvalidActionPenalty),
		cfg:       cfg,
		ep:        initial,
		initialEp: initial,
		status:    Ready,
	}
}

// Status returns the Environment's current lifecycle state.
func (e *Environment) Status() Status {
	return e.status
}

// Episode returns the episode currently in progress.
func (e *Environment) Episode() episode.Episode {
	return e.ep
}

// Reset implements spec.md §4.H's reset(): from any state, advance to
// Running. From EpisodeDone, first try to advance to the next episode
// via the scheduler; on success only the episode pointer moves forward
// (the ledger keeps prior episodes' trades until Clear()). On failure
// (no more data), do a full restart: cursor reset, ledger clear,
// episode back to the initial one. The returned Observation is always
// paired with StepOutcome=InProgress.
func (e *Environment) Reset() Observation {
	if e.status == EpisodeDone {
		if next, ok := episode.AdvanceToNextEpisode(e.sd, e.cur, e.ep); ok {
			e.ep = next
			e.status = Running
			log.Debug().Int("episode_id", int(e.ep.ID)).Msg("env: advanced to next episode")
			return e.observe()
		}
		log.Debug().Msg("env: no further episodes, restarting from initial episode")
	}

	e.cur.Reset(e.sd)
	e.ledger.Clear()
	e.ep = e.initialEp
	e.status = Running
	return e.observe()
}

// Step implements spec.md §4.H's step(actions): only legal in Running.
func (e *Environment) Step(actions []ledger.Action) (Observation, float64, StepOutcome, error) {
	if e.status != Running {
		return Observation{}, 0, InProgress, fmt.Errorf("%w: step called while %s", simerr.ErrInvalidState, e.status)
	}

	// 1. Observe S(t).
	view := e.marketView()

	// 2. Apply actions.
	summary, err := e.ledger.ApplyActions(e.ep.ID, actions, view)
	if err != nil {
		return Observation{}, 0, InProgress, err
	}

	// 3. Transition dynamics.
	e.cur.Step(e.sd, e.ep.End)
	newView := e.marketView()
	if err := e.ledger.ApplyUpdates(e.ep.ID, newView); err != nil {
		return Observation{}, 0, InProgress, err
	}
	penalty := float64(summary.Rejected) * e.cfg.InvalidActionPenalty
	reward := e.ledger.PopStepReward(e.ep.ID) + penalty

	// 4. Evaluate outcome.
	episodeBoundary := e.ep.IsEpisodeEnd(e.cur.CurrentTS())
	endOfData := e.cur.IsEndOfData()
	outcome := InProgress
	if episodeBoundary || endOfData {
		if e.ledger.IsTerminal(e.ep.ID) {
			outcome = Terminated
		} else {
			outcome = Truncated
		}
	}

	// A Truncated episode with no further data will never get a chance
	// to close its remaining trades naturally, and there is no next
	// episode to carry them into (endOfData means Reset will fully
	// restart rather than advance) — force-close now so they still
	// reach the Journal.
	if outcome == Truncated && endOfData {
		if err := e.ledger.ForceCloseEpisode(e.ep.ID, newView); err != nil {
			return Observation{}, 0, InProgress, err
		}
		reward += e.ledger.PopStepReward(e.ep.ID)
	}

	// 5. Update status.
	switch {
	case outcome == InProgress:
		e.status = Running
	case endOfData:
		e.status = Done
	default:
		e.status = EpisodeDone
	}

	// 6. Observe S(t+1).
	return e.observe(), reward, outcome, nil
}

func (e *Environment) marketView() ledger.MarketView {
	view := make(ledger.MarketView)
	for m := range e.symbolsSeen() {
		if c, ok := e.cur.LatestCandle(e.sd, m); ok {
			view[m] = c
		}
	}
	return view
}

// symbolsSeen enumerates every market id with a candle stream in
// SimulationData, used to assemble a step's MarketView.
func (e *Environment) symbolsSeen() map[event.MarketID]struct{} {
	out := make(map[event.MarketID]struct{}, len(e.sd.Candles))
	for m := range e.sd.Candles {
		out[m] = struct{}{}
	}
	return out
}

func (e *Environment) observe() Observation {
	return Observation{CurrentTS: e.cur.CurrentTS(), MarketView: e.marketView(), Episode: e.ep}
}

// Ledger exposes the underlying Ledger for report/journal extraction
// after an evaluation run completes.
func (e *Environment) Ledger() *ledger.Ledger {
	return e.ledger
}
