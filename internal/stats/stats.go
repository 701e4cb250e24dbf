// Package stats computes descriptive performance metrics from equity or
// return series. All functions are pure; undefined metrics are reported as
// NaN and rendered as "N/A", never silently as zero, so a zero-day run cannot
// masquerade as a flat one.
package stats

import (
	"math"
	"strconv"

	"mktlab/pkg/contracts/domain"
)

// DaysPerYear is the calendar-day base used for CAGR annualization.
const DaysPerYear = 365.25

// TradingDaysPerYear is the trading-day base used for volatility annualization.
const TradingDaysPerYear = 252

// Summary bundles the standard metrics for one equity curve. Computed
// identically for the simulator's own curve and for external ones, so
// comparisons are apples-to-apples.
type Summary struct {
	StartEquity  float64 `json:"start_equity"`
	EndEquity    float64 `json:"end_equity"`
	Years        float64 `json:"years"`
	CAGR         float64 `json:"cagr"`
	Volatility   float64 `json:"volatility"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	TradingDays  int     `json:"trading_days"`
}

// Summarize computes the summary metrics for an equity curve ordered by date.
func Summarize(points []domain.EquityPoint) Summary {
	if len(points) == 0 {
		return Summary{CAGR: math.NaN(), Volatility: math.NaN(), MaxDrawdown: math.NaN()}
	}

	equity := make([]float64, len(points))
	for i, p := range points {
		equity[i] = p.Equity
	}

	days := points[len(points)-1].Date.Sub(points[0].Date).Hours() / 24
	return Summary{
		StartEquity: equity[0],
		EndEquity:   equity[len(equity)-1],
		Years:       days / DaysPerYear,
		CAGR:        CAGR(equity[0], equity[len(equity)-1], days),
		Volatility:  AnnualizedVolatility(DailyReturns(equity)),
		MaxDrawdown: MaxDrawdown(equity),
		TradingDays: len(points),
	}
}

// CAGR is the compound annual growth rate over daysElapsed calendar days:
// (end/start)^(365.25/days) - 1. NaN when daysElapsed is zero or start is not
// positive.
func CAGR(start, end, daysElapsed float64) float64 {
	if daysElapsed <= 0 || start <= 0 {
		return math.NaN()
	}
	return math.Pow(end/start, DaysPerYear/daysElapsed) - 1
}

// DailyReturns computes simple returns between consecutive equity values.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// AnnualizedVolatility is the sample standard deviation of daily simple
// returns scaled by sqrt(252). NaN with fewer than two returns.
func AnnualizedVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown is the worst peak-to-trough decline against a monotonic
// high-water mark, as a negative fraction (0 for a non-decreasing curve).
// NaN for an empty series.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return math.NaN()
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if dd := e/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// FormatPct renders a fraction as a percentage with two decimals, or "N/A"
// for an undefined (NaN) metric.
func FormatPct(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}
