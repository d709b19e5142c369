package eval

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/LenWilliamson/chapaty-sub001/internal/agent"
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/env"
)

// AgentEntry pairs an agent under evaluation with the uid it is
// ranked under on the leaderboard (spec.md §4.I's "(agent_uid, agent)").
type AgentEntry struct {
	UID   agent.Identifier
	Agent agent.Agent
}

// Config carries the harness's tunables: which metrics to rank by, how
// many leaderboard slots to keep per metric, how many workers run
// concurrently, and the risk-metrics inputs PortfolioPerformance needs.
type Config struct {
	Metrics     []report.PortfolioPerformanceCol
	TopK        int
	Concurrency int
	RiskMetrics report.RiskMetricsConfig
}

// EvaluateAgent runs one agent to exhaustion against e: reset, then
// act/step until the environment reaches Done, resetting the agent
// (and advancing to the next episode) at every Terminated/Truncated
// boundary along the way (spec.md §4.I's evaluate_agent). The returned
// Journal covers every episode the agent was run through.
func EvaluateAgent(e *env.Environment, a agent.Agent) (report.Journal, error) {
	obs := e.Reset()
	for {
		actions, err := a.Act(obs)
		if err != nil {
			return report.Journal{}, fmt.Errorf("eval: agent %s: act: %w", a.Identifier(), err)
		}

		nextObs, _, outcome, err := e.Step(actions)
		if err != nil {
			return report.Journal{}, fmt.Errorf("eval: agent %s: step: %w", a.Identifier(), err)
		}
		obs = nextObs

		if outcome == env.InProgress {
			continue
		}

		a.Reset()
		if e.Status() == env.Done {
			break
		}
		obs = e.Reset()
	}
	return e.Ledger().AsJournal()
}

// Run evaluates every entry in agents against its own cloned
// Environment (cheap: sd is shared by reference) across a bounded pool
// of cfg.Concurrency workers, and folds each worker's per-metric
// AgentLeaderboard into the returned Leaderboard (spec.md §4.I,
// §5 "Inter-environment (evaluation)"). The first agent error
// encountered cancels remaining work and is returned; partial results
// are discarded, matching "propagated, not swallowed."
func Run(sd *event.SimulationData, symbols map[event.MarketID]price.Symbol, envCfg env.Config, agents []AgentEntry, cfg Config) (Leaderboard, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan AgentEntry)
	type workerResult struct {
		boards map[report.PortfolioPerformanceCol]*AgentLeaderboard
	}
	results := make(chan workerResult, concurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var errOnce sync.Once
	var firstErr error

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			boards := newLeaderboards(cfg.Metrics, cfg.TopK)
			for job := range jobs {
				select {
				case <-ctx.Done():
					continue
				default:
				}

				workerEnv := env.New(sd, symbols, envCfg)
				journal, err := EvaluateAgent(workerEnv, job.Agent)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}

				perf := report.ComputePortfolioPerformance(journal, cfg.RiskMetrics, nil)
				for _, m := range cfg.Metrics {
					value, ok := perf.Metric(m)
					if !ok {
						continue
					}
					entry := LeaderboardEntry{AgentUID: job.UID, Metric: m, Reward: value, Score: scoreOf(m, value)}
					if cs, ok := job.Agent.(agent.ConfigSnapshotter); ok {
						entry.Config = cs.ConfigSnapshot()
					}
					boards[m].Insert(entry)
				}
				log.Debug().Str("agent_uid", string(job.UID)).Msg("eval: agent evaluated")
			}
			results <- workerResult{boards: boards}
		}()
	}

	go func() {
		defer close(jobs)
		for _, a := range agents {
			select {
			case jobs <- a:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	merged := newLeaderboards(cfg.Metrics, cfg.TopK)
	for r := range results {
		for _, m := range cfg.Metrics {
			for _, e := range r.boards[m].Entries() {
				merged[m].Insert(e)
			}
		}
	}

	if firstErr != nil {
		return nil, fmt.Errorf("eval: run aborted: %w", firstErr)
	}

	out := make(Leaderboard, len(cfg.Metrics))
	for _, m := range cfg.Metrics {
		out[m] = merged[m].SortedEntries()
	}
	return out, nil
}
