// Package panel merges sanitized series into the aligned close/return panel.
//
// The date axis is the reference calendar, exactly. A missing session is
// forward-filled from the prior close for at most a configured number of
// consecutive sessions; the filled date's return is null (a stale fill is not
// a return observation). An instrument that exceeds the cap anywhere in the
// window, or has no observation on or before the calendar start, is dropped
// from the panel with a tagged reason, keeping every surviving column
// calendar-complete.
package panel

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	apperrors "mktlab/internal/errors"
	"mktlab/pkg/contracts/domain"
)

const stage = "panel-builder"

// Builder aligns series onto the reference calendar.
type Builder struct {
	maxFillGap int
	logger     *slog.Logger
}

// NewBuilder creates a panel builder. maxFillGap is the maximum number of
// consecutive sessions to forward-fill before dropping an instrument.
func NewBuilder(maxFillGap int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{maxFillGap: maxFillGap, logger: logger}
}

// column is one instrument aligned to the calendar before assembly.
type column struct {
	symbol string
	close  []float64
	real   []bool
}

// Build aligns every series onto calendar and assembles the panel.
// Instruments that cannot be made calendar-complete are reported as
// exclusions, not errors; an empty calendar or a panel with no surviving
// columns is fatal.
func (b *Builder) Build(calendar []time.Time, series []domain.SanitizedSeries) (*domain.Panel, []domain.Exclusion, error) {
	if len(calendar) == 0 {
		return nil, nil, apperrors.Integrity(stage, "reference calendar is empty")
	}

	var cols []column
	var exclusions []domain.Exclusion
	for _, s := range series {
		if err := checkMonotonic(s); err != nil {
			return nil, nil, err
		}
		col, excl := b.align(calendar, s)
		if excl != nil {
			b.logger.Warn("instrument dropped from panel",
				slog.String("symbol", excl.Symbol),
				slog.String("reason", excl.Reason),
				slog.String("detail", excl.Detail))
			exclusions = append(exclusions, *excl)
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, exclusions, apperrors.Integrity(stage, "no instrument survived panel alignment")
	}

	p := &domain.Panel{
		Dates:       calendar,
		Symbols:     make([]string, len(cols)),
		Close:       make([][]float64, len(calendar)),
		Return:      make([][]float64, len(calendar)),
		ReturnValid: make([][]bool, len(calendar)),
	}
	for j, col := range cols {
		p.Symbols[j] = col.symbol
	}
	for t := range calendar {
		p.Close[t] = make([]float64, len(cols))
		p.Return[t] = make([]float64, len(cols))
		p.ReturnValid[t] = make([]bool, len(cols))
		for j, col := range cols {
			p.Close[t][j] = col.close[t]
			// Return is null on the first date and on filled sessions: a
			// forward-filled close is a stale quote, not an observed return.
			if t > 0 && col.real[t] {
				p.Return[t][j] = col.close[t]/col.close[t-1] - 1
				p.ReturnValid[t][j] = true
			}
		}
	}

	b.logger.Info("panel built",
		slog.Int("dates", p.Rows()),
		slog.Int("instruments", p.Cols()),
		slog.Int("excluded", len(exclusions)))
	return p, exclusions, nil
}

// align walks the calendar once against the series, forward-filling within the
// cap. It returns either a calendar-complete column or the exclusion that
// disqualified the instrument.
func (b *Builder) align(calendar []time.Time, s domain.SanitizedSeries) (column, *domain.Exclusion) {
	col := column{
		symbol: s.Symbol,
		close:  make([]float64, len(calendar)),
		real:   make([]bool, len(calendar)),
	}

	lastClose := math.NaN()
	fillRun := 0
	j := 0
	for t, date := range calendar {
		observed := false
		// Bars at or before this calendar date seed the fill source; bars
		// between calendar dates (non-benchmark sessions) only refresh it.
		for j < len(s.Bars) && !s.Bars[j].Date.After(date) {
			lastClose = s.Bars[j].Close
			if s.Bars[j].Date.Equal(date) {
				observed = true
			}
			j++
		}

		if observed {
			col.close[t] = lastClose
			col.real[t] = true
			fillRun = 0
			continue
		}
		if math.IsNaN(lastClose) {
			return column{}, &domain.Exclusion{
				Symbol: s.Symbol,
				Reason: domain.ExcludeMissingAtStart,
				Detail: fmt.Sprintf("no observation on or before calendar start %s", date.Format(domain.DateFormat)),
			}
		}
		fillRun++
		if fillRun > b.maxFillGap {
			return column{}, &domain.Exclusion{
				Symbol: s.Symbol,
				Reason: domain.ExcludeFillCap,
				Detail: fmt.Sprintf("more than %d consecutive missing sessions at %s", b.maxFillGap, date.Format(domain.DateFormat)),
			}
		}
		col.close[t] = lastClose
	}
	return col, nil
}

// checkMonotonic guards the panel against non-monotonic dates surviving
// sanitization; such input is an invariant breach in an earlier stage.
func checkMonotonic(s domain.SanitizedSeries) error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return apperrors.Integrity(stage, "series %s has non-increasing dates at %s",
				s.Symbol, s.Bars[i].Date.Format(domain.DateFormat))
		}
	}
	return nil
}
