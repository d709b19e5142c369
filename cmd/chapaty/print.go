package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LenWilliamson/chapaty-sub001/internal/report"
)

// portfolioPerformanceReportCols is the fixed, deterministic column
// order printed for a PortfolioPerformance: the headline metrics first,
// then the drawdown ones. Kept short of every PortfolioPerformanceCol
// so a terminal run stays readable; every subcommand that prints a
// PortfolioPerformance (including `report build`) prints this same subset.
var portfolioPerformanceReportCols = []report.PortfolioPerformanceCol{
	report.NetProfit,
	report.WinRate,
	report.SharpeRatio,
	report.SortinoRatio,
	report.CalmarRatio,
	report.MaxDrawdownUSD,
	report.MaxDrawdownPct,
	report.RecoveryFactor,
}

func printPortfolioPerformance(cmd *cobra.Command, label string, perf report.PortfolioPerformance) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "portfolio performance (%s, %d trades):\n", label, perf.TradeCount())
	for _, col := range portfolioPerformanceReportCols {
		v, ok := perf.Metric(col)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %-28s %12.4f\n", col.String(), v)
	}
}

func printTradeStatistics(cmd *cobra.Command, stats report.TradeStatistics) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "trade statistics (%d trades):\n", stats.TradeCount())
	fmt.Fprintf(out, "  %-28s %12d\n", "wins", stats.Count(report.WinningTradeCount))
	fmt.Fprintf(out, "  %-28s %12d\n", "losses", stats.Count(report.LosingTradeCount))
	fmt.Fprintf(out, "  %-28s %12d\n", "max_consecutive_wins", stats.Count(report.MaxConsecutiveWins))
	fmt.Fprintf(out, "  %-28s %12d\n", "max_consecutive_losses", stats.Count(report.MaxConsecutiveLosses))
	fmt.Fprintf(out, "  %-28s %12s\n", "avg_trade_duration", stats.Duration(report.AvgTradeDuration))
}
