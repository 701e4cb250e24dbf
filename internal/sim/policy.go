package sim

import (
	"fmt"
	"time"

	"mktlab/internal/config"
)

// Policy decides target portfolio weights for a date. The simulator's cost
// and accounting machinery is shared; policies only answer "what should the
// book look like today". A policy must be deterministic given the same panel.
type Policy interface {
	Name() string

	// TargetWeights returns the desired weights (aligned with symbols) for
	// date index t, or ok=false to hold the current book. prev is the prior
	// trading date; it is the zero time when t is 0.
	TargetWeights(t int, date, prev time.Time, symbols []string) (weights []float64, ok bool)
}

// FromName maps a configured policy name to its implementation.
func FromName(name string) (Policy, error) {
	switch name {
	case config.PolicyEqualWeightMonthly:
		return EqualWeightMonthly{}, nil
	case config.PolicyBuyAndHold:
		return BuyAndHold{}, nil
	default:
		return nil, fmt.Errorf("unknown rebalance policy %q", name)
	}
}

// EqualWeightMonthly rebalances to equal weights on the first date and on the
// first trading date of every calendar month thereafter.
type EqualWeightMonthly struct{}

func (EqualWeightMonthly) Name() string { return config.PolicyEqualWeightMonthly }

func (EqualWeightMonthly) TargetWeights(t int, date, prev time.Time, symbols []string) ([]float64, bool) {
	if t > 0 && monthKey(date) == monthKey(prev) {
		return nil, false
	}
	return equalWeights(len(symbols)), true
}

// BuyAndHold allocates equal weights exactly once on the first date and never
// trades again, regardless of drift.
type BuyAndHold struct{}

func (BuyAndHold) Name() string { return config.PolicyBuyAndHold }

func (BuyAndHold) TargetWeights(t int, date, prev time.Time, symbols []string) ([]float64, bool) {
	if t != 0 {
		return nil, false
	}
	return equalWeights(len(symbols)), true
}

func equalWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}
	return weights
}

func monthKey(date time.Time) int {
	return date.Year()*100 + int(date.Month())
}
