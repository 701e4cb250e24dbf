package domain

import (
	"time"
)

// TradeSide is the direction of a simulated trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is an immutable, append-only record of one simulated execution.
// Notional is quantity times execution price; FeeTotal covers the variable fee
// plus any fixed per-order cost.
type Trade struct {
	Date     time.Time `json:"date"`
	Symbol   string    `json:"symbol"`
	Side     TradeSide `json:"side"`
	Quantity float64   `json:"qty"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	FeeTotal float64   `json:"fee_total"`
}

// Position is one instrument's holding snapshot on one date. Quantity may be
// fractional; Value is quantity times that date's close.
type Position struct {
	Date     time.Time `json:"date"`
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"qty"`
	Value    float64   `json:"value"`
}

// EquityPoint is one date of the simulated equity curve.
// Equity = cash + sum of position values on that date.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
	Cash   float64   `json:"cash"`
}
