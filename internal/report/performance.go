package report

import (
	"math"
	"sort"
)

// RiskMetricsConfig parameterizes the risk-adjusted ratios in
// PortfolioPerformance (spec.md §6 "risk_metrics_config").
type RiskMetricsConfig struct {
	InitialPortfolioValue float64 `yaml:"initial_portfolio_value"`
	RiskFreeRate          float64 `yaml:"risk_free_rate"`  // annualized
	TargetReturn          float64 `yaml:"target_return"`   // annualized, used by Sortino/Omega
	PeriodsPerYear        float64 `yaml:"periods_per_year"` // trades-per-year annualization factor
}

// DefaultRiskMetricsConfig mirrors exits.DefaultExitConfig's role: a
// ready-to-use starting point callers narrow via direct field writes
// (RiskMetricsConfig has no invariants that require a builder).
func DefaultRiskMetricsConfig() RiskMetricsConfig {
	return RiskMetricsConfig{
		InitialPortfolioValue: 10000,
		RiskFreeRate:          0,
		TargetReturn:          0,
		PeriodsPerYear:        252,
	}
}

// PortfolioPerformanceCol enumerates every scalar metric the Evaluation
// Harness can score an agent by (spec.md §4.I, §4.J).
type PortfolioPerformanceCol uint8

const (
	NetProfit PortfolioPerformanceCol = iota
	AvgTradeProfit
	ExpectedValuePerTrade
	TotalWinProfit
	TotalLoss
	TotalWinProfitByTotalLoss
	SharpeRatio
	SortinoRatio
	OmegaRatio
	CalmarRatio
	RecoveryFactor
	MaxDrawdownUSD
	MaxDrawdownPct
	WinRate
	AvgWinToAvgLossRatio
	TradeReturnStdDev
	TradeReturnVariance
	LowerQuantileTradeReturn
	MedianTradeReturn
	UpperQuantileTradeReturn
	AvgWinReturn
	AvgLossReturn
	LargestWin
	LargestLoss
	UnrealizedWinProfit
	UnrealizedLoss
	CleanWinProfit
	CleanLoss
	RootMeanSquareDeviation
	MeanAbsoluteError
)

var portfolioPerformanceColNames = map[PortfolioPerformanceCol]string{
	NetProfit:                 "net_profit",
	AvgTradeProfit:            "avg_trade_profit",
	ExpectedValuePerTrade:     "expected_value_per_trade",
	TotalWinProfit:            "total_win_profit",
	TotalLoss:                 "total_loss",
	TotalWinProfitByTotalLoss: "total_win_profit_by_total_loss",
	SharpeRatio:               "sharpe_ratio",
	SortinoRatio:              "sortino_ratio",
	OmegaRatio:                "omega_ratio",
	CalmarRatio:               "calmar_ratio",
	RecoveryFactor:            "recovery_factor",
	MaxDrawdownUSD:            "max_drawdown_usd",
	MaxDrawdownPct:            "max_drawdown_pct",
	WinRate:                   "win_rate",
	AvgWinToAvgLossRatio:      "avg_win_to_avg_loss_ratio",
	TradeReturnStdDev:         "trade_return_std_dev",
	TradeReturnVariance:       "trade_return_variance",
	LowerQuantileTradeReturn:  "lower_quantile_trade_return",
	MedianTradeReturn:         "median_trade_return",
	UpperQuantileTradeReturn:  "upper_quantile_trade_return",
	AvgWinReturn:              "avg_win_return",
	AvgLossReturn:             "avg_loss_return",
	LargestWin:                "largest_win",
	LargestLoss:               "largest_loss",
	UnrealizedWinProfit:       "unrealized_win_profit",
	UnrealizedLoss:            "unrealized_loss",
	CleanWinProfit:            "clean_win_profit",
	CleanLoss:                 "clean_loss",
	RootMeanSquareDeviation:   "root_mean_square_deviation",
	MeanAbsoluteError:         "mean_absolute_error",
}

func (c PortfolioPerformanceCol) String() string {
	if s, ok := portfolioPerformanceColNames[c]; ok {
		return s
	}
	return "unknown"
}

// Maximize reports whether a higher value is better for this metric
// (spec.md §4.I's metric-to-heap-score mapping).
func (c PortfolioPerformanceCol) Maximize() bool {
	switch c {
	case MaxDrawdownUSD, MaxDrawdownPct, TotalLoss, UnrealizedLoss, CleanLoss,
		RootMeanSquareDeviation, MeanAbsoluteError, TradeReturnStdDev, TradeReturnVariance:
		return false
	default:
		return true
	}
}

// PortfolioPerformance is the single-row scalar summary of a Journal
// (spec.md §4.J). A Journal with no Closed rows yields a report with no
// defined metric: Metric returns (0, false) for every column.
type PortfolioPerformance struct {
	values map[PortfolioPerformanceCol]float64
	n      int
}

// Metric returns a scored metric. ok is false for a metric that is
// undefined for this Journal (e.g. SharpeRatio with zero return
// variance), matching original_source's nullable accessor.
func (p PortfolioPerformance) Metric(col PortfolioPerformanceCol) (value float64, ok bool) {
	v, ok := p.values[col]
	return v, ok
}

// TradeCount is the number of Closed (executed) rows the report was
// computed over; Canceled rows never contribute a return and are
// excluded, matching original_source's executed_trade_count filter.
func (p PortfolioPerformance) TradeCount() int {
	return p.n
}

// ComputePortfolioPerformance derives PortfolioPerformance from a
// Journal's Closed rows, in the row order the Journal already carries
// (ascending entry_timestamp — spec.md §6). referenceCurve is an
// optional per-trade cumulative-return series (same length as the
// Closed-row subset) used for the RMSD/MAE-vs-reference metrics; pass
// nil to get SPEC_FULL.md §3's default, the buy-and-hold return of the
// first market touched in the Journal (see buyAndHoldCurve). Callers
// that already have a real reference series (e.g. a benchmark index)
// can still supply one explicitly to override the default.
func ComputePortfolioPerformance(j Journal, cfg RiskMetricsConfig, referenceCurve []float64) PortfolioPerformance {
	var rows []Row
	for _, r := range j.Rows() {
		if r.TradeState == "closed" {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return PortfolioPerformance{values: map[PortfolioPerformanceCol]float64{}}
	}

	returns := make([]float64, len(rows))
	for i, r := range rows {
		returns[i] = r.RealizedReturnDollars
	}

	var wins, losses []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else if r < 0 {
			losses = append(losses, -r)
		}
	}

	netProfit := sum(returns)
	n := float64(len(returns))
	winRate := float64(len(wins)) / n
	avgWin := meanOf(wins)
	avgLoss := meanOf(losses)
	totalWin := sum(wins)
	totalLoss := sum(losses)

	equity, maxDDUSD, maxDDPct := drawdownCurve(cfg.InitialPortfolioValue, returns)

	meanRet, stdRet := meanAndStdDev(returns)
	_, variance := meanRet, stdRet*stdRet

	downsideDev := downsideDeviation(returns, cfg.TargetReturn)
	annualize := math.Sqrt(maxFloat(cfg.PeriodsPerYear, 1))

	values := map[PortfolioPerformanceCol]float64{
		NetProfit:                 netProfit,
		AvgTradeProfit:            netProfit / n,
		ExpectedValuePerTrade:     winRate*avgWin - (1-winRate)*avgLoss,
		TotalWinProfit:            totalWin,
		TotalLoss:                 totalLoss,
		WinRate:                   winRate,
		AvgWinReturn:              avgWin,
		AvgLossReturn:             avgLoss,
		LargestWin:                maxOf(returns),
		LargestLoss:               -minOf(returns),
		MaxDrawdownUSD:            maxDDUSD,
		MaxDrawdownPct:            maxDDPct,
		TradeReturnStdDev:         stdRet,
		TradeReturnVariance:       variance,
		LowerQuantileTradeReturn:  quantile(returns, 0.25),
		MedianTradeReturn:         quantile(returns, 0.5),
		UpperQuantileTradeReturn:  quantile(returns, 0.75),
	}

	if totalLoss > 0 {
		values[TotalWinProfitByTotalLoss] = totalWin / totalLoss
	}
	if avgLoss > 0 {
		values[AvgWinToAvgLossRatio] = avgWin / avgLoss
	}
	if maxDDUSD > 0 {
		values[RecoveryFactor] = netProfit / maxDDUSD
	}
	if stdRet > 0 {
		values[SharpeRatio] = (meanRet - cfg.RiskFreeRate/maxFloat(cfg.PeriodsPerYear, 1)) / stdRet * annualize
	}
	if downsideDev > 0 {
		values[SortinoRatio] = (meanRet - cfg.TargetReturn/maxFloat(cfg.PeriodsPerYear, 1)) / downsideDev * annualize
	}
	if omega, ok := omegaRatio(returns, cfg.TargetReturn); ok {
		values[OmegaRatio] = omega
	}
	if maxDDPct > 0 {
		values[CalmarRatio] = (netProfit / maxFloat(cfg.InitialPortfolioValue, 1)) * annualize * annualize / maxDDPct
	}

	unrealizedWin, unrealizedLoss, cleanWin, cleanLoss := partitionByExitReason(rows)
	values[UnrealizedWinProfit] = unrealizedWin
	values[UnrealizedLoss] = unrealizedLoss
	values[CleanWinProfit] = cleanWin
	values[CleanLoss] = cleanLoss

	reference := referenceCurve
	if reference == nil {
		reference = buyAndHoldCurve(rows)
	}
	rmsd, mae := deviationFromReference(equity, cfg.InitialPortfolioValue, reference)
	values[RootMeanSquareDeviation] = rmsd
	values[MeanAbsoluteError] = mae

	return PortfolioPerformance{values: values, n: len(rows)}
}

func partitionByExitReason(rows []Row) (unrealizedWin, unrealizedLoss, cleanWin, cleanLoss float64) {
	for _, r := range rows {
		unrealized := r.ExitReason == "market_close"
		if r.RealizedReturnDollars >= 0 {
			if unrealized {
				unrealizedWin += r.RealizedReturnDollars
			} else {
				cleanWin += r.RealizedReturnDollars
			}
		} else {
			if unrealized {
				unrealizedLoss += -r.RealizedReturnDollars
			} else {
				cleanLoss += -r.RealizedReturnDollars
			}
		}
	}
	return
}

// drawdownCurve walks the equity curve (initial value plus cumulative
// realized return, in row order) and returns the curve itself plus the
// maximum peak-to-trough drawdown in dollars and as a fraction of peak.
func drawdownCurve(initial float64, returns []float64) (curve []float64, maxDDUSD, maxDDPct float64) {
	equity := initial
	peak := initial
	curve = make([]float64, len(returns))
	for i, r := range returns {
		equity += r
		curve[i] = equity
		if equity > peak {
			peak = equity
		}
		dd := peak - equity
		if dd > maxDDUSD {
			maxDDUSD = dd
		}
		if peak > 0 {
			if pct := dd / peak; pct > maxDDPct {
				maxDDPct = pct
			}
		}
	}
	return
}

func deviationFromReference(equity []float64, initial float64, reference []float64) (rmsd, mae float64) {
	if len(equity) == 0 {
		return 0, 0
	}
	var sqSum, absSum float64
	for i, e := range equity {
		ret := (e - initial) / maxFloat(initial, 1)
		ref := 0.0
		if reference != nil && i < len(reference) {
			ref = reference[i]
		}
		d := ret - ref
		sqSum += d * d
		absSum += math.Abs(d)
	}
	n := float64(len(equity))
	return math.Sqrt(sqSum / n), absSum / n
}

// buyAndHoldCurve builds the SPEC_FULL.md §3 default RMSD/MAE
// reference series: the cumulative return of simply holding the first
// market touched by rows (rows[0].Symbol/MarketType), from that
// market's first entry price onward, sampled once per row in rows'
// order. Rows belonging to a different market carry the last known
// buy-and-hold return forward, since the Journal only records a
// market's own price at the rows where it traded.
func buyAndHoldCurve(rows []Row) []float64 {
	if len(rows) == 0 {
		return nil
	}
	targetSymbol, targetMarketType := rows[0].Symbol, rows[0].MarketType

	var basePrice float64
	curve := make([]float64, len(rows))
	var last float64
	for i, r := range rows {
		if r.Symbol == targetSymbol && r.MarketType == targetMarketType {
			if basePrice == 0 {
				basePrice = r.EntryPrice
			}
			if basePrice != 0 {
				last = (r.ExitPrice - basePrice) / basePrice
			}
		}
		curve[i] = last
	}
	return curve
}

func omegaRatio(returns []float64, target float64) (float64, bool) {
	var gains, lossesMag float64
	for _, r := range returns {
		excess := r - target
		if excess > 0 {
			gains += excess
		} else {
			lossesMag += -excess
		}
	}
	if lossesMag == 0 {
		return 0, false
	}
	return gains / lossesMag, true
}

func downsideDeviation(returns []float64, target float64) float64 {
	var sq float64
	count := 0
	for _, r := range returns {
		if r < target {
			d := r - target
			sq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sq / float64(count))
}

func meanAndStdDev(xs []float64) (mean, std float64) {
	mean = meanOf(xs)
	if len(xs) == 0 {
		return 0, 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return sum(xs) / float64(len(xs))
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// quantile computes the q-th quantile of xs via linear interpolation on
// the sorted copy, matching the common "linear" method used by
// Polars' default QuantileMethod.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
