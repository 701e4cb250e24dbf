package domain

import (
	"time"
)

// DateFormat is the canonical on-disk date layout for all pipeline artifacts.
const DateFormat = "2006-01-02"

// Bar represents one instrument's OHLCV observation for a single trading day.
// Bars are produced once by upstream ingestion and never mutated; the sanitizer
// may drop a bar but never rewrites its values.
type Bar struct {
	Date   time.Time `json:"date" csv:"Date"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`
}

// GeometryOK reports whether the bar satisfies the OHLC ordering invariant:
// high >= max(open, close, low), low <= min(open, close, high), low >= 0.
func (b Bar) GeometryOK() bool {
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if b.Low > hi {
		hi = b.Low
	}
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	if b.High < lo {
		lo = b.High
	}
	return b.Low >= 0 && b.High >= hi && b.Low <= lo
}

// SanitizedSeries is an ordered, duplicate-free bar sequence for one instrument.
// It is immutable once emitted by the sanitizer.
type SanitizedSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Dates returns the trading dates of the series in order.
func (s SanitizedSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Date
	}
	return dates
}

// Empty reports whether the series carries no bars.
func (s SanitizedSeries) Empty() bool { return len(s.Bars) == 0 }

// Audit reasons recorded by the sanitizer.
const (
	ReasonDuplicateDate    = "DUPLICATE_DATE"
	ReasonInvalidOHLC      = "INVALID_OHLC"
	ReasonNonPositivePrice = "NON_POSITIVE_PRICE"
	ReasonExtremeMove      = "EXTREME_MOVE"
)

// Audit actions.
const (
	ActionDropped = "DROPPED"
	ActionFlagged = "FLAGGED"
)

// AuditEntry records one sanitizer decision. The audit log is append-only and
// complete: every absent or flagged date in a SanitizedSeries is explained by
// exactly one entry.
type AuditEntry struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Reason string    `json:"reason"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}
