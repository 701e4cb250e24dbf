// Package quality cross-checks sanitized series against the reference trading
// calendar and decides the run's effective universe.
//
// The calendar is the benchmark instrument's sanitized dates: the ground truth
// for "this date should have data". Instruments below the coverage minimum are
// excluded with a warning (partial universe degradation is tolerated); an
// empty benchmark or an empty effective universe is fatal, because downstream
// stages must never run against an empty or undefined calendar.
package quality

import (
	"fmt"
	"log/slog"
	"time"

	apperrors "mktlab/internal/errors"
	"mktlab/internal/sanitize"
	"mktlab/pkg/contracts/domain"
)

const stage = "quality-gate"

// Gate checks coverage against the reference calendar.
type Gate struct {
	minCoverage float64
	logger      *slog.Logger
}

// NewGate creates a quality gate with the given minimum coverage share.
func NewGate(minCoverage float64, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{minCoverage: minCoverage, logger: logger}
}

// Result is the gate's decision: the reference calendar, the series that
// passed, and per-instrument coverage plus exclusions.
type Result struct {
	Calendar   []time.Time
	Included   []domain.SanitizedSeries
	Reports    []domain.CoverageReport
	Exclusions []domain.Exclusion
}

// Check derives the reference calendar from the benchmark's series and
// measures every other instrument against it. The benchmark itself is always
// included. Results preserve the order of the input results slice (universe
// order).
func (g *Gate) Check(benchmark string, results []sanitize.Result) (*Result, error) {
	var calendar []time.Time
	for _, r := range results {
		if r.Series.Symbol == benchmark {
			calendar = r.Series.Dates()
			break
		}
	}
	if len(calendar) == 0 {
		return nil, apperrors.Integrity(stage, "benchmark %s has an empty sanitized series; no reference calendar", benchmark)
	}

	calendarSet := make(map[time.Time]struct{}, len(calendar))
	for _, d := range calendar {
		calendarSet[d] = struct{}{}
	}

	out := &Result{Calendar: calendar}
	for _, r := range results {
		series := r.Series
		if series.Empty() {
			out.Exclusions = append(out.Exclusions, domain.Exclusion{
				Symbol: series.Symbol,
				Reason: domain.ExcludeEmptySeries,
				Detail: "no bars survived sanitization",
			})
			out.Reports = append(out.Reports, domain.CoverageReport{
				Symbol:   series.Symbol,
				Expected: len(calendar),
			})
			continue
		}

		present := 0
		for _, d := range series.Dates() {
			if _, ok := calendarSet[d]; ok {
				present++
			}
		}
		coverage := float64(present) / float64(len(calendar))
		included := series.Symbol == benchmark || coverage >= g.minCoverage

		out.Reports = append(out.Reports, domain.CoverageReport{
			Symbol:   series.Symbol,
			Present:  present,
			Expected: len(calendar),
			Coverage: coverage,
			Included: included,
		})

		if !included {
			g.logger.Warn("instrument excluded for insufficient coverage",
				slog.String("symbol", series.Symbol),
				slog.Float64("coverage", coverage),
				slog.Float64("min_coverage", g.minCoverage))
			out.Exclusions = append(out.Exclusions, domain.Exclusion{
				Symbol: series.Symbol,
				Reason: domain.ExcludeLowCoverage,
				Detail: fmt.Sprintf("coverage %.4f below minimum %.4f", coverage, g.minCoverage),
			})
			continue
		}
		out.Included = append(out.Included, series)
	}

	if len(out.Included) == 0 {
		return nil, apperrors.Integrity(stage, "effective universe is empty after coverage checks")
	}
	return out, nil
}
