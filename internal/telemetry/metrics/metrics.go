// Package metrics exposes a Prometheus MetricsRegistry for a
// long-running evaluation driver, built the way
// internal/interfaces/http/metrics.go assembles CryptoRun's registry:
// one struct of pre-declared vectors/gauges, a single constructor, and
// explicit Register calls against a caller-supplied prometheus.Registerer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry holds every metric an evaluation run or HTTP status surface
// exports (spec.md §4.I/§4.H lifecycle events).
type Registry struct {
	StepDuration     *prometheus.HistogramVec
	EpisodesStarted  *prometheus.CounterVec
	TradesOpened     *prometheus.CounterVec
	TradesClosed     *prometheus.CounterVec
	ActionsRejected  *prometheus.CounterVec
	LeaderboardSize  *prometheus.GaugeVec
	AgentsEvaluated  prometheus.Counter
	EvaluationErrors prometheus.Counter
}

// NewRegistry constructs a Registry with every metric pre-declared;
// callers must Register it before scraping.
func NewRegistry() *Registry {
	return &Registry{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chapaty_step_duration_seconds",
				Help:    "Duration of a single Environment.Step call in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"market"},
		),
		EpisodesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapaty_episodes_started_total",
				Help: "Total number of episodes started across all environments",
			},
			[]string{"episode_length"},
		),
		TradesOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapaty_trades_opened_total",
				Help: "Total number of trades opened (filled or pending)",
			},
			[]string{"market", "direction"},
		),
		TradesClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapaty_trades_closed_total",
				Help: "Total number of trades closed, by exit reason",
			},
			[]string{"market", "exit_reason"},
		),
		ActionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chapaty_actions_rejected_total",
				Help: "Total number of agent actions rejected by the ledger",
			},
			[]string{"market", "kind"},
		),
		LeaderboardSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chapaty_leaderboard_size",
				Help: "Current number of entries held per metric leaderboard",
			},
			[]string{"metric"},
		),
		AgentsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chapaty_agents_evaluated_total",
				Help: "Total number of agents fully evaluated by the harness",
			},
		),
		EvaluationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chapaty_evaluation_errors_total",
				Help: "Total number of evaluation runs aborted by a worker error",
			},
		),
	}
}

// Register attaches every metric in r to reg.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.StepDuration, r.EpisodesStarted, r.TradesOpened, r.TradesClosed,
		r.ActionsRejected, r.LeaderboardSize, r.AgentsEvaluated, r.EvaluationErrors,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
