package report

import "time"

// CumulativeReturn is one row of a row-preserving equity-curve
// transform: unlike PortfolioPerformance/TradeStatistics (N rows -> 1),
// this keeps exactly one output row per input Row, each carrying the
// running equity-curve state as of that row's exit (spec.md §4.J,
// ported from original_source's cumulative_returns.rs).
type CumulativeReturn struct {
	RowID     uint32
	EpisodeID uint32
	TradeID   int64
	AgentID   string

	DataBroker string
	Exchange   string
	Symbol     string
	MarketType string

	TradeType string
	Quantity  float64

	CumulativeTimestamp time.Time
	LastPeakTimestamp   time.Time

	PeakCumulativeReturnUSD    float64
	DrawdownFromPeakUSD        float64
	DrawdownFromPeakPercentage float64
	RollingRecoveryFactor      float64

	ExitReason                  string
	CumulativeRealizedReturnUSD float64
}

// ComputeCumulativeReturns walks j's Closed rows in order, maintaining a
// running equity curve seeded at cfg.InitialPortfolioValue, and emits
// one CumulativeReturn per row.
func ComputeCumulativeReturns(j Journal, cfg RiskMetricsConfig) []CumulativeReturn {
	var rows []Row
	for _, r := range j.Rows() {
		if r.TradeState == "closed" {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	out := make([]CumulativeReturn, len(rows))
	equity := cfg.InitialPortfolioValue
	peak := cfg.InitialPortfolioValue
	var peakTS time.Time
	if len(rows) > 0 {
		peakTS = rows[0].ExitTimestamp
	}
	var cumulative float64

	for i, r := range rows {
		equity += r.RealizedReturnDollars
		cumulative += r.RealizedReturnDollars
		if equity > peak {
			peak = equity
			peakTS = r.ExitTimestamp
		}
		ddUSD := peak - equity
		var ddPct float64
		if peak > 0 {
			ddPct = ddUSD / peak
		}
		var recovery float64
		if ddUSD > 0 {
			recovery = cumulative / ddUSD
		}

		out[i] = CumulativeReturn{
			RowID:     r.RowID,
			EpisodeID: r.EpisodeID,
			TradeID:   r.TradeID,
			AgentID:   r.AgentID,

			DataBroker: r.DataBroker,
			Exchange:   r.Exchange,
			Symbol:     r.Symbol,
			MarketType: r.MarketType,

			TradeType: r.TradeType,
			Quantity:  r.Quantity,

			CumulativeTimestamp: r.ExitTimestamp,
			LastPeakTimestamp:   peakTS,

			PeakCumulativeReturnUSD:    peak,
			DrawdownFromPeakUSD:        ddUSD,
			DrawdownFromPeakPercentage: ddPct,
			RollingRecoveryFactor:      recovery,

			ExitReason:                  r.ExitReason,
			CumulativeRealizedReturnUSD: cumulative,
		}
	}
	return out
}
