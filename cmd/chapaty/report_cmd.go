package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/LenWilliamson/chapaty-sub001/internal/config"
	"github.com/LenWilliamson/chapaty-sub001/internal/persistence/postgres"
	"github.com/LenWilliamson/chapaty-sub001/internal/report"
)

var groupColByName = map[string]report.GroupCol{
	"episode_id":    report.GroupEpisodeID,
	"trade_state":   report.GroupTradeState,
	"agent_id":      report.GroupAgentID,
	"data_broker":   report.GroupDataBroker,
	"exchange":      report.GroupExchange,
	"symbol":        report.GroupSymbol,
	"market_type":   report.GroupMarketType,
	"trade_type":    report.GroupTradeType,
	"entry_year":    report.GroupEntryYear,
	"entry_month":   report.GroupEntryMonth,
	"entry_weekday": report.GroupEntryWeekday,
	"exit_reason":   report.GroupExitReason,
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build performance reports from a persisted journal",
	}
	cmd.AddCommand(newReportBuildCmd())
	return cmd
}

func newReportBuildCmd() *cobra.Command {
	var dsn, agentID, groupByFlag string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load an agent's journal from Postgres and print its performance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("postgres", dsn)
			if err != nil {
				return fmt.Errorf("report: open postgres: %w", err)
			}
			defer db.Close()
			sqlxDB := sqlx.NewDb(db, "postgres")

			repo := postgres.NewJournalRepo(sqlxDB, timeout)
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			journal, err := repo.ListByAgent(ctx, agentID)
			if err != nil {
				return fmt.Errorf("report: %w", err)
			}
			if len(journal.Rows()) == 0 {
				return fmt.Errorf("report: agent %s has no persisted journal rows", agentID)
			}

			riskCfg := config.DefaultEnvironmentConfig().RiskMetrics

			if groupByFlag == "" {
				perf := report.ComputePortfolioPerformance(journal, riskCfg, nil)
				stats := report.ComputeTradeStatistics(journal)
				printPortfolioPerformance(cmd, agentID, perf)
				printTradeStatistics(cmd, stats)
				return nil
			}

			cols, err := parseGroupCols(groupByFlag)
			if err != nil {
				return err
			}
			grouped := report.GroupBy(journal, cols...)
			perfs, err := grouped.PortfolioPerformance(riskCfg, nil)
			if err != nil {
				return fmt.Errorf("report: grouped performance: %w", err)
			}
			for i, grp := range grouped.Groups() {
				label := strings.Join(grp.Keys, "/")
				printPortfolioPerformance(cmd, agentID+"/"+label, perfs[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "postgres-dsn", "", "Postgres connection string (required)")
	cmd.Flags().StringVar(&agentID, "agent-id", "", "agent identifier to load the journal for (required)")
	cmd.Flags().StringVar(&groupByFlag, "group-by", "", "comma-separated group columns, e.g. symbol,exit_reason (optional)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-query timeout")
	cmd.MarkFlagRequired("postgres-dsn")
	cmd.MarkFlagRequired("agent-id")

	return cmd
}

func parseGroupCols(flagVal string) ([]report.GroupCol, error) {
	var cols []report.GroupCol
	for _, name := range strings.Split(flagVal, ",") {
		name = strings.TrimSpace(name)
		col, ok := groupColByName[name]
		if !ok {
			return nil, fmt.Errorf("report: unknown group-by column %q", name)
		}
		cols = append(cols, col)
	}
	return cols, nil
}
