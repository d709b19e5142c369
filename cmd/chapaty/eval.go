package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LenWilliamson/chapaty-sub001/internal/agent"
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/eval"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate multiple agents and rank them on a leaderboard",
	}
	cmd.AddCommand(newEvalLeaderboardCmd())
	return cmd
}

func newEvalLeaderboardCmd() *cobra.Command {
	var dataPath, configPath, direction, marketFlag, agentSpecs string
	var quantity float64
	var concurrency, topK int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Run a set of FlatOpenAgent variants and print per-metric leaderboards",
		RunE: func(cmd *cobra.Command, args []string) error {
			sd, symbols, err := loadDataset(dataPath)
			if err != nil {
				return err
			}
			envCfg, riskCfg, err := loadEnvConfig(configPath)
			if err != nil {
				return err
			}
			market, err := resolveMarket(symbols, marketFlag)
			if err != nil {
				return err
			}
			dir, err := parseDirection(direction)
			if err != nil {
				return err
			}

			entries, err := parseAgentEntries(agentSpecs, market, symbols[market], dir, quantity)
			if err != nil {
				return err
			}

			cfg := eval.Config{
				Metrics:     portfolioPerformanceReportCols,
				TopK:        topK,
				Concurrency: concurrency,
				RiskMetrics: riskCfg,
			}

			board, err := eval.Run(sd, symbols, envCfg, entries, cfg)
			if err != nil {
				return fmt.Errorf("eval: %w", err)
			}

			printLeaderboard(cmd, board)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to a market dataset JSON file (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to an environment config YAML file (optional)")
	cmd.Flags().StringVar(&direction, "direction", "long", "trade direction applied to every agent: long | short")
	cmd.Flags().StringVar(&marketFlag, "market", "", "broker:exchange:symbol:period of the market to trade (default: first in the dataset)")
	cmd.Flags().Float64Var(&quantity, "quantity", 1.0, "fixed order quantity for every agent")
	cmd.Flags().StringVar(&agentSpecs, "agents", "tight:10:20,wide:30:60", "comma-separated name:sl-ticks:tp-ticks agent variants")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "worker pool size")
	cmd.Flags().IntVar(&topK, "top-k", 10, "leaderboard slots kept per metric")
	cmd.MarkFlagRequired("data")

	return cmd
}

// parseAgentEntries builds one FlatOpenAgent per "name:sl-ticks:tp-ticks" spec.
func parseAgentEntries(specs string, market event.MarketID, sym price.Symbol, dir trade.Direction, quantity float64) ([]eval.AgentEntry, error) {
	var entries []eval.AgentEntry
	for _, spec := range strings.Split(specs, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("eval: invalid agent spec %q (want name:sl-ticks:tp-ticks)", spec)
		}
		name := parts[0]
		sl, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("eval: agent %s: sl-ticks: %w", name, err)
		}
		tp, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("eval: agent %s: tp-ticks: %w", name, err)
		}

		a := agent.NewFlatOpenAgent(agent.Identifier(name), agent.FlatOpenConfig{
			Market: market, Direction: dir, Quantity: quantity,
			StopLossTicks: sl, TakeProfitTicks: tp, Symbol: sym,
		})
		entries = append(entries, eval.AgentEntry{UID: agent.Identifier(name), Agent: a})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("eval: no agent specs parsed from %q", specs)
	}
	return entries, nil
}

func printLeaderboard(cmd *cobra.Command, board eval.Leaderboard) {
	out := cmd.OutOrStdout()
	for _, col := range portfolioPerformanceReportCols {
		entries, ok := board[col]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "leaderboard: %s\n", col.String())
		for rank, e := range entries {
			fmt.Fprintf(out, "  %2d. %-16s reward=%12.4f score=%12.4f\n", rank+1, e.AgentUID, e.Reward, e.Score)
		}
	}
}
