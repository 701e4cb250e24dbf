package domain

import (
	"time"
)

// Panel holds the aligned date-by-instrument close and return matrices.
// The date axis equals the reference calendar exactly for every included
// instrument; columns that could not be made calendar-complete are excluded
// before the panel is built.
//
// Matrices are date-major: Close[t][j] is the close of Symbols[j] on Dates[t].
// Return[t][j] is the daily simple return Close[t]/Close[t-1] - 1; its value is
// meaningful only where ReturnValid[t][j] is true (never on the first date and
// never on a forward-filled session).
type Panel struct {
	Dates       []time.Time `json:"dates"`
	Symbols     []string    `json:"symbols"`
	Close       [][]float64 `json:"close"`
	Return      [][]float64 `json:"return"`
	ReturnValid [][]bool    `json:"return_valid"`
}

// Rows returns the number of trading dates in the panel.
func (p *Panel) Rows() int { return len(p.Dates) }

// Cols returns the number of instruments in the panel.
func (p *Panel) Cols() int { return len(p.Symbols) }

// Exclusion reason codes. Inclusion decisions are explicit, tagged values so
// downstream consumers and tests can enumerate them instead of inspecting
// control flow.
const (
	ExcludeEmptySeries    = "EMPTY_SERIES"
	ExcludeLowCoverage    = "LOW_COVERAGE"
	ExcludeFillCap        = "FILL_CAP_EXCEEDED"
	ExcludeMissingAtStart = "MISSING_AT_START"
)

// Exclusion records one instrument dropped from the effective universe or from
// the panel, with the reason it was dropped.
type Exclusion struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// CoverageReport summarizes one instrument's presence against the reference
// calendar, as measured by the quality gate.
type CoverageReport struct {
	Symbol   string  `json:"symbol"`
	Present  int     `json:"present"`
	Expected int     `json:"expected"`
	Coverage float64 `json:"coverage"`
	Included bool    `json:"included"`
}
