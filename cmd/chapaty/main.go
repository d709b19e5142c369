package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/LenWilliamson/chapaty-sub001/internal/telemetry"
)

const (
	appName = "chapaty"
	version = "v0.1.0"
)

func main() {
	runID := telemetry.NewRunID()
	telemetry.Init(term.IsTerminal(int(os.Stderr.Fd())), runID)

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Deterministic market-replay backtesting and agent evaluation",
		Version: version,
		Long: `chapaty drives a deterministic, event-driven market simulation against
recorded candle data, in the style of a Gym-style reinforcement-learning
environment. Use the subcommands below to run a single agent through a
backtest, rank many agents on a leaderboard, build a performance report
from a persisted journal, or compute a market profile.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newProfileCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("chapaty: command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
