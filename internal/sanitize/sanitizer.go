// Package sanitize validates raw bar series and emits clean, audited series.
//
// Checks run per bar, in order, each independently able to drop or flag:
//
//	DUPLICATE_DATE      non-increasing date, dropped (first occurrence kept)
//	INVALID_OHLC        impossible bar geometry, dropped
//	NON_POSITIVE_PRICE  close <= 0, dropped
//	EXTREME_MOVE        single-day move beyond threshold, flagged but kept
//
// A bar whose internal geometry is impossible is dropped, never repaired:
// silently rewriting price data is worse than losing the day. Extreme moves
// stay in because real gap events (splits, crashes) are legitimate and
// dropping them would corrupt long-horizon return compounding.
package sanitize

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"mktlab/pkg/contracts/domain"
)

// Result pairs one instrument's clean series with the audit entries produced
// while cleaning it.
type Result struct {
	Series domain.SanitizedSeries
	Audit  []domain.AuditEntry
}

// Sanitizer cleans raw bar series.
type Sanitizer struct {
	extremeMove float64
	logger      *slog.Logger
}

// New creates a sanitizer. extremeMove is the |close/prev_close - 1| threshold
// above which a bar is flagged for human review.
func New(extremeMove float64, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{extremeMove: extremeMove, logger: logger}
}

// Series sanitizes one instrument's raw bars. Input order is preserved; the
// returned series has strictly increasing dates and every bar satisfies the
// OHLC ordering invariant.
func (s *Sanitizer) Series(symbol string, raw []domain.Bar) Result {
	clean := make([]domain.Bar, 0, len(raw))
	var audit []domain.AuditEntry
	prevClose := math.NaN()

	for _, bar := range raw {
		if n := len(clean); n > 0 && !bar.Date.After(clean[n-1].Date) {
			audit = append(audit, entry(symbol, bar, domain.ReasonDuplicateDate, domain.ActionDropped,
				fmt.Sprintf("date not after previous kept bar %s", clean[n-1].Date.Format(domain.DateFormat))))
			continue
		}
		if !bar.GeometryOK() {
			audit = append(audit, entry(symbol, bar, domain.ReasonInvalidOHLC, domain.ActionDropped,
				"high/low bounds violated"))
			continue
		}
		if bar.Close <= 0 {
			audit = append(audit, entry(symbol, bar, domain.ReasonNonPositivePrice, domain.ActionDropped,
				"close <= 0"))
			continue
		}
		if !math.IsNaN(prevClose) {
			move := bar.Close/prevClose - 1
			if math.Abs(move) > s.extremeMove {
				audit = append(audit, entry(symbol, bar, domain.ReasonExtremeMove, domain.ActionFlagged,
					"requires human review"))
			}
		}
		clean = append(clean, bar)
		prevClose = bar.Close
	}

	if len(audit) > 0 {
		s.logger.Info("sanitized series with findings",
			slog.String("symbol", symbol),
			slog.Int("kept", len(clean)),
			slog.Int("findings", len(audit)))
	}
	return Result{
		Series: domain.SanitizedSeries{Symbol: symbol, Bars: clean},
		Audit:  audit,
	}
}

// Universe sanitizes every instrument concurrently. Series are independent
// (no shared writes), so the fan-out needs no coordination; results are joined
// back in universe order so downstream output stays deterministic.
func (s *Sanitizer) Universe(ctx context.Context, universe []string, raw map[string][]domain.Bar) ([]Result, error) {
	results := make([]Result, len(universe))

	g, ctx := errgroup.WithContext(ctx)
	for i, symbol := range universe {
		i, symbol := i, symbol
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.Series(symbol, raw[symbol])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func entry(symbol string, bar domain.Bar, reason, action, detail string) domain.AuditEntry {
	return domain.AuditEntry{
		Date:   bar.Date,
		Symbol: symbol,
		Reason: reason,
		Action: action,
		Detail: detail,
	}
}
