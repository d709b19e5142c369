// Package postgres is the durable store for Journal rows once an
// evaluation run completes (spec.md §6), grounded on
// internal/persistence/postgres/trades_repo.go's repository shape:
// a struct wrapping *sqlx.DB and a per-call timeout, transaction +
// prepared-statement batch inserts, and pq.Error 23505 duplicate
// detection.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/LenWilliamson/chapaty-sub001/internal/report"
)

// JournalRepo persists and retrieves report.Row records.
type JournalRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewJournalRepo constructs a JournalRepo around an already-connected db.
func NewJournalRepo(db *sqlx.DB, timeout time.Duration) *JournalRepo {
	return &JournalRepo{db: db, timeout: timeout}
}

// Schema is the DDL for the journal_rows table, run once by a migration
// step before the first InsertJournal call.
const Schema = `
CREATE TABLE IF NOT EXISTS journal_rows (
	row_id                   INTEGER NOT NULL,
	episode_id               INTEGER NOT NULL,
	trade_id                 BIGINT NOT NULL,
	trade_state              TEXT NOT NULL,
	agent_id                 TEXT NOT NULL,
	data_broker              TEXT NOT NULL,
	exchange                 TEXT NOT NULL,
	symbol                   TEXT NOT NULL,
	market_type              TEXT NOT NULL,
	trade_type               TEXT NOT NULL,
	entry_price              DOUBLE PRECISION NOT NULL,
	stop_loss_price          DOUBLE PRECISION NOT NULL,
	take_profit_price        DOUBLE PRECISION NOT NULL,
	exit_price               DOUBLE PRECISION NOT NULL,
	quantity                 DOUBLE PRECISION NOT NULL,
	expected_loss_ticks      BIGINT NOT NULL,
	expected_profit_ticks    BIGINT NOT NULL,
	realized_return_ticks    BIGINT NOT NULL,
	expected_loss_dollars    DOUBLE PRECISION NOT NULL,
	expected_profit_dollars  DOUBLE PRECISION NOT NULL,
	realized_return_dollars  DOUBLE PRECISION NOT NULL,
	risk_reward_ratio        DOUBLE PRECISION NOT NULL,
	entry_timestamp          TIMESTAMPTZ NOT NULL,
	exit_timestamp           TIMESTAMPTZ NOT NULL,
	exit_reason              TEXT NOT NULL,
	PRIMARY KEY (agent_id, episode_id, row_id)
)`

// InsertJournal persists every row of j atomically, mirroring
// tradesRepo.InsertBatch's transaction-plus-prepared-statement shape.
// agentID scopes the rows, since a Journal on its own carries no
// notion of which agent produced it.
func (r *JournalRepo) InsertJournal(ctx context.Context, agentID string, j report.Journal) error {
	rows := j.Rows()
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin journal insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal_rows (
			row_id, episode_id, trade_id, trade_state, agent_id,
			data_broker, exchange, symbol, market_type, trade_type,
			entry_price, stop_loss_price, take_profit_price, exit_price, quantity,
			expected_loss_ticks, expected_profit_ticks, realized_return_ticks,
			expected_loss_dollars, expected_profit_dollars, realized_return_dollars,
			risk_reward_ratio, entry_timestamp, exit_timestamp, exit_reason
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, $23, $24, $25
		)
		ON CONFLICT (agent_id, episode_id, row_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("postgres: prepare journal insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.RowID, row.EpisodeID, row.TradeID, row.TradeState, agentID,
			row.DataBroker, row.Exchange, row.Symbol, row.MarketType, row.TradeType,
			row.EntryPrice, row.StopLossPrice, row.TakeProfitPrice, row.ExitPrice, row.Quantity,
			row.ExpectedLossInTicks, row.ExpectedProfitInTicks, row.RealizedReturnInTicks,
			row.ExpectedLossDollars, row.ExpectedProfitDollars, row.RealizedReturnDollars,
			row.RiskRewardRatio, row.EntryTimestamp, row.ExitTimestamp, row.ExitReason,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("postgres: duplicate journal row %d/%d for agent %s: %w", row.EpisodeID, row.RowID, agentID, err)
			}
			return fmt.Errorf("postgres: insert journal row %d/%d: %w", row.EpisodeID, row.RowID, err)
		}
	}

	return tx.Commit()
}

// journalRowRecord mirrors journal_rows' columns for sqlx scanning.
type journalRowRecord struct {
	RowID      uint32    `db:"row_id"`
	EpisodeID  uint32    `db:"episode_id"`
	TradeID    int64     `db:"trade_id"`
	TradeState string    `db:"trade_state"`
	AgentID    string    `db:"agent_id"`

	DataBroker string `db:"data_broker"`
	Exchange   string `db:"exchange"`
	Symbol     string `db:"symbol"`
	MarketType string `db:"market_type"`
	TradeType  string `db:"trade_type"`

	EntryPrice      float64 `db:"entry_price"`
	StopLossPrice   float64 `db:"stop_loss_price"`
	TakeProfitPrice float64 `db:"take_profit_price"`
	ExitPrice       float64 `db:"exit_price"`
	Quantity        float64 `db:"quantity"`

	ExpectedLossInTicks   int64 `db:"expected_loss_ticks"`
	ExpectedProfitInTicks int64 `db:"expected_profit_ticks"`
	RealizedReturnInTicks int64 `db:"realized_return_ticks"`

	ExpectedLossDollars   float64 `db:"expected_loss_dollars"`
	ExpectedProfitDollars float64 `db:"expected_profit_dollars"`
	RealizedReturnDollars float64 `db:"realized_return_dollars"`

	RiskRewardRatio float64 `db:"risk_reward_ratio"`

	EntryTimestamp time.Time `db:"entry_timestamp"`
	ExitTimestamp  time.Time `db:"exit_timestamp"`

	ExitReason string `db:"exit_reason"`
}

func (rec journalRowRecord) toRow() report.Row {
	return report.Row{
		RowID:      rec.RowID,
		EpisodeID:  rec.EpisodeID,
		TradeID:    rec.TradeID,
		TradeState: rec.TradeState,
		AgentID:    rec.AgentID,

		DataBroker: rec.DataBroker,
		Exchange:   rec.Exchange,
		Symbol:     rec.Symbol,
		MarketType: rec.MarketType,

		TradeType: rec.TradeType,

		EntryPrice:      rec.EntryPrice,
		StopLossPrice:   rec.StopLossPrice,
		TakeProfitPrice: rec.TakeProfitPrice,
		ExitPrice:       rec.ExitPrice,
		Quantity:        rec.Quantity,

		ExpectedLossInTicks:   rec.ExpectedLossInTicks,
		ExpectedProfitInTicks: rec.ExpectedProfitInTicks,
		RealizedReturnInTicks: rec.RealizedReturnInTicks,

		ExpectedLossDollars:   rec.ExpectedLossDollars,
		ExpectedProfitDollars: rec.ExpectedProfitDollars,
		RealizedReturnDollars: rec.RealizedReturnDollars,

		RiskRewardRatio: rec.RiskRewardRatio,

		EntryTimestamp: rec.EntryTimestamp,
		ExitTimestamp:  rec.ExitTimestamp,

		ExitReason: rec.ExitReason,
	}
}

// ListByAgent returns every persisted row for agentID, ordered the way
// NewJournal requires (ascending by entry_timestamp), so the result can
// be fed straight back into report.NewJournal.
func (r *JournalRepo) ListByAgent(ctx context.Context, agentID string) (report.Journal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT row_id, episode_id, trade_id, trade_state, agent_id,
			data_broker, exchange, symbol, market_type, trade_type,
			entry_price, stop_loss_price, take_profit_price, exit_price, quantity,
			expected_loss_ticks, expected_profit_ticks, realized_return_ticks,
			expected_loss_dollars, expected_profit_dollars, realized_return_dollars,
			risk_reward_ratio, entry_timestamp, exit_timestamp, exit_reason
		FROM journal_rows
		WHERE agent_id = $1
		ORDER BY entry_timestamp ASC, episode_id ASC, row_id ASC`

	rows, err := r.db.QueryxContext(ctx, query, agentID)
	if err != nil {
		return report.Journal{}, fmt.Errorf("postgres: query journal rows for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var rec journalRowRecord
		if err := rows.StructScan(&rec); err != nil {
			return report.Journal{}, fmt.Errorf("postgres: scan journal row: %w", err)
		}
		out = append(out, rec.toRow())
	}
	if err := rows.Err(); err != nil {
		return report.Journal{}, fmt.Errorf("postgres: iterate journal rows for agent %s: %w", agentID, err)
	}

	return report.NewJournal(out)
}

// CountByAgent returns the number of persisted rows for agentID.
func (r *JournalRepo) CountByAgent(ctx context.Context, agentID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM journal_rows WHERE agent_id = $1`, agentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count journal rows for agent %s: %w", agentID, err)
	}
	return count, nil
}
