package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LenWilliamson/chapaty-sub001/internal/agent"
	"github.com/LenWilliamson/chapaty-sub001/internal/config"
	"github.com/LenWilliamson/chapaty-sub001/internal/domain/price"
	"github.com/LenWilliamson/chapaty-sub001/internal/eval"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
	"github.com/LenWilliamson/chapaty-sub001/internal/sim/event"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/env"
	"github.com/LenWilliamson/chapaty-sub001/internal/trading/trade"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a single agent through a deterministic backtest",
	}
	cmd.AddCommand(newBacktestRunCmd())
	return cmd
}

func newBacktestRunCmd() *cobra.Command {
	var dataPath, configPath, agentID, direction, marketFlag string
	var quantity float64
	var slTicks, tpTicks int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one FlatOpenAgent to completion and print its performance",
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

			e := env.New(sd, symbols, envCfg)
			a := agent.NewFlatOpenAgent(agent.Identifier(agentID), agent.FlatOpenConfig{
				Market:          market,
				Direction:       dir,
				Quantity:        quantity,
				StopLossTicks:   slTicks,
				TakeProfitTicks: tpTicks,
				Symbol:          symbols[market],
			})

			journal, err := eval.EvaluateAgent(e, a)
			if err != nil {
				return fmt.Errorf("backtest: %w", err)
			}

			perf := report.ComputePortfolioPerformance(journal, riskCfg, nil)
			stats := report.ComputeTradeStatistics(journal)

			printPortfolioPerformance(cmd, agentID, perf)
			printTradeStatistics(cmd, stats)
			log.Info().Str("agent_id", agentID).Int("trades", stats.TradeCount()).Msg("backtest: run complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to a market dataset JSON file (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to an environment config YAML file (optional)")
	cmd.Flags().StringVar(&agentID, "agent-id", "flat-open", "agent identifier for journal attribution")
	cmd.Flags().StringVar(&direction, "direction", "long", "trade direction: long | short")
	cmd.Flags().StringVar(&marketFlag, "market", "", "broker:exchange:symbol:period of the market to trade (default: first in the dataset)")
	cmd.Flags().Float64Var(&quantity, "quantity", 1.0, "fixed order quantity")
	cmd.Flags().Int64Var(&slTicks, "sl-ticks", 20, "stop-loss distance in ticks")
	cmd.Flags().Int64Var(&tpTicks, "tp-ticks", 40, "take-profit distance in ticks")
	cmd.MarkFlagRequired("data")

	return cmd
}

func loadEnvConfig(path string) (env.Config, report.RiskMetricsConfig, error) {
	cfg := config.DefaultEnvironmentConfig()
	if path != "" {
		loaded, err := config.LoadEnvironmentConfig(path)
		if err != nil {
			return env.Config{}, report.RiskMetricsConfig{}, err
		}
		cfg = loaded
	}

	bias, err := cfg.Execution.Bias()
	if err != nil {
		return env.Config{}, report.RiskMetricsConfig{}, err
	}
	length, err := cfg.Episode.Length()
	if err != nil {
		return env.Config{}, report.RiskMetricsConfig{}, err
	}

	envCfg := env.DefaultConfig().
		WithExecutionBias(bias).
		WithInvalidActionPenalty(cfg.Execution.InvalidActionPenalty).
		WithEpisodeLength(length)
	return envCfg, cfg.RiskMetrics, nil
}

func parseDirection(s string) (trade.Direction, error) {
	switch s {
	case "long", "":
		return trade.Long, nil
	case "short":
		return trade.Short, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want long|short)", s)
	}
}

// resolveMarket picks the market named by flagVal (MarketID.String()'s
// "broker:exchange:symbol:period" form), or the first market in sorted
// order when flagVal is empty.
func resolveMarket(symbols map[event.MarketID]price.Symbol, flagVal string) (event.MarketID, error) {
	ids := sortedMarketIDs(symbols)
	if flagVal == "" {
		return ids[0], nil
	}
	for _, id := range ids {
		if id.String() == flagVal {
			return id, nil
		}
	}
	return event.MarketID{}, fmt.Errorf("market %q not found in dataset", flagVal)
}
