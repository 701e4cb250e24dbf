package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mktlab/internal/errors"
	"mktlab/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testPanel builds a calendar-complete panel from a date-major close matrix.
func testPanel(dates []time.Time, symbols []string, close [][]float64) *domain.Panel {
	p := &domain.Panel{
		Dates:       dates,
		Symbols:     symbols,
		Close:       close,
		Return:      make([][]float64, len(dates)),
		ReturnValid: make([][]bool, len(dates)),
	}
	for t := range dates {
		p.Return[t] = make([]float64, len(symbols))
		p.ReturnValid[t] = make([]bool, len(symbols))
		for j := range symbols {
			if t > 0 {
				p.Return[t][j] = close[t][j]/close[t-1][j] - 1
				p.ReturnValid[t][j] = true
			}
		}
	}
	return p
}

func TestRunBuyAndHoldWorkedExample(t *testing.T) {
	p := testPanel(
		[]time.Time{day(2024, time.March, 1), day(2024, time.March, 4), day(2024, time.March, 5)},
		[]string{"A", "B"},
		[][]float64{
			{100, 50},
			{110, 50},
			{121, 55},
		},
	)

	res, err := New(CostModel{}, nil).Run(p, 1000, BuyAndHold{})
	require.NoError(t, err)

	// Day 0 buys 5 A and 10 B at frictionless closes and spends all cash.
	require.Len(t, res.Trades, 2)
	assert.Equal(t, domain.TradeSideBuy, res.Trades[0].Side)
	assert.Equal(t, "A", res.Trades[0].Symbol)
	assert.InDelta(t, 5, res.Trades[0].Quantity, 1e-9)
	assert.Equal(t, "B", res.Trades[1].Symbol)
	assert.InDelta(t, 10, res.Trades[1].Quantity, 1e-9)

	require.Len(t, res.Equity, 3)
	assert.InDelta(t, 1000, res.Equity[0].Equity, 1e-9)
	assert.InDelta(t, 1050, res.Equity[1].Equity, 1e-9)
	assert.InDelta(t, 1155, res.Equity[2].Equity, 1e-9)
	for _, pt := range res.Equity {
		assert.InDelta(t, 0, pt.Cash, 1e-9)
	}

	// One position row per instrument per date.
	assert.Len(t, res.Positions, 6)
}

func TestRunBuyAndHoldTradesOnlyOnce(t *testing.T) {
	dates := make([]time.Time, 40)
	close := make([][]float64, 40)
	d := day(2024, time.January, 2)
	px := 100.0
	for t := range dates {
		dates[t] = d
		close[t] = []float64{px, px * 0.5}
		d = d.AddDate(0, 0, 1)
		px *= 1.01
	}
	p := testPanel(dates, []string{"A", "B"}, close)

	res, err := New(CostModel{FeeBps: 5, SlippageBps: 2}, nil).Run(p, 10000, BuyAndHold{})
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	for _, tr := range res.Trades {
		assert.Equal(t, dates[0], tr.Date)
	}
}

func TestRunMonthlyRebalanceSchedule(t *testing.T) {
	dates := []time.Time{
		day(2024, time.January, 30),
		day(2024, time.January, 31),
		day(2024, time.February, 1),
		day(2024, time.February, 2),
		day(2024, time.March, 4),
	}
	close := [][]float64{
		{100, 100},
		{120, 100},
		{140, 100},
		{150, 100},
		{160, 100},
	}
	p := testPanel(dates, []string{"UP", "FLAT"}, close)

	res, err := New(CostModel{}, nil).Run(p, 1000, EqualWeightMonthly{})
	require.NoError(t, err)

	// Trades happen on the first date and the first session of each later
	// month, never mid-month.
	tradeDates := map[time.Time]bool{}
	for _, tr := range res.Trades {
		tradeDates[tr.Date] = true
	}
	assert.True(t, tradeDates[dates[0]])
	assert.True(t, tradeDates[dates[2]])
	assert.True(t, tradeDates[dates[4]])
	assert.False(t, tradeDates[dates[1]])
	assert.False(t, tradeDates[dates[3]])
}

func TestRunRebalanceSellsBeforeBuys(t *testing.T) {
	dates := []time.Time{day(2024, time.January, 31), day(2024, time.February, 1)}
	close := [][]float64{
		{100, 100},
		{160, 100},
	}
	p := testPanel(dates, []string{"UP", "FLAT"}, close)

	res, err := New(CostModel{}, nil).Run(p, 1000, EqualWeightMonthly{})
	require.NoError(t, err)

	// Feb 1 rebalance trims the winner before topping up the laggard.
	var feb []domain.Trade
	for _, tr := range res.Trades {
		if tr.Date.Equal(dates[1]) {
			feb = append(feb, tr)
		}
	}
	require.Len(t, feb, 2)
	assert.Equal(t, domain.TradeSideSell, feb[0].Side)
	assert.Equal(t, "UP", feb[0].Symbol)
	assert.Equal(t, domain.TradeSideBuy, feb[1].Side)
	assert.Equal(t, "FLAT", feb[1].Symbol)

	// With zero costs the post-rebalance weights are equal.
	equity := res.Equity[1].Equity
	for _, pos := range res.Positions {
		if pos.Date.Equal(dates[1]) {
			assert.InDelta(t, 0.5, pos.Value/equity, 1e-9)
		}
	}
}

func TestRunCashNeverNegative(t *testing.T) {
	dates := make([]time.Time, 60)
	close := make([][]float64, 60)
	d := day(2024, time.January, 2)
	a, b := 100.0, 80.0
	for t := range dates {
		dates[t] = d
		close[t] = []float64{a, b}
		d = d.AddDate(0, 0, 1)
		// deterministic zig-zag drift
		if t%2 == 0 {
			a *= 1.03
			b *= 0.99
		} else {
			a *= 0.98
			b *= 1.02
		}
	}
	p := testPanel(dates, []string{"A", "B"}, close)

	res, err := New(CostModel{FeeBps: 5, SlippageBps: 2, FixedCost: 0.5}, nil).Run(p, 1000, EqualWeightMonthly{})
	require.NoError(t, err)

	for _, pt := range res.Equity {
		assert.GreaterOrEqual(t, pt.Cash, 0.0, "cash must never go negative (%s)", pt.Date)
	}
	for _, pos := range res.Positions {
		assert.GreaterOrEqual(t, pos.Quantity, 0.0, "no short positions")
	}
}

func TestRunBuyBatchScalesToAvailableCash(t *testing.T) {
	p := testPanel(
		[]time.Time{day(2024, time.March, 1)},
		[]string{"A"},
		[][]float64{{100}},
	)

	res, err := New(CostModel{FeeBps: 10}, nil).Run(p, 1000, BuyAndHold{})
	require.NoError(t, err)

	// Target notional is 1000 but fees make that unaffordable; the batch is
	// scaled so notional*(1+fee) spends the cash exactly.
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Less(t, tr.Notional, 1000.0)
	assert.InDelta(t, 1000.0/1.001, tr.Notional, 1e-6)
	assert.InDelta(t, 0, res.Equity[0].Cash, 1e-9)
}

func TestRunSkipsBuyBatchWhenFixedCostsExceedCash(t *testing.T) {
	p := testPanel(
		[]time.Time{day(2024, time.March, 1)},
		[]string{"A"},
		[][]float64{{100}},
	)

	res, err := New(CostModel{FixedCost: 10}, nil).Run(p, 5, BuyAndHold{})
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.InDelta(t, 5, res.Equity[0].Cash, 1e-12)
}

func TestRunFeesReduceProceeds(t *testing.T) {
	dates := []time.Time{day(2024, time.January, 31), day(2024, time.February, 1)}
	close := [][]float64{
		{100, 100},
		{200, 100},
	}
	p := testPanel(dates, []string{"UP", "FLAT"}, close)

	res, err := New(CostModel{FeeBps: 10, SlippageBps: 5, FixedCost: 1}, nil).Run(p, 1000, EqualWeightMonthly{})
	require.NoError(t, err)

	for _, tr := range res.Trades {
		if tr.Side == domain.TradeSideSell {
			assert.InDelta(t, tr.Notional*0.001+1, tr.FeeTotal, 1e-9)
			// Sells execute below the close.
			assert.Less(t, tr.Price, 200.0)
		} else {
			// Buys execute above the close.
			assert.Greater(t, tr.Price, close[0][0]*0.99)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	dates := []time.Time{
		day(2024, time.January, 31),
		day(2024, time.February, 1),
		day(2024, time.February, 2),
	}
	close := [][]float64{
		{100, 50, 25},
		{110, 45, 26},
		{105, 52, 24},
	}
	p := testPanel(dates, []string{"A", "B", "C"}, close)
	costs := CostModel{FeeBps: 5, SlippageBps: 2, FixedCost: 0.25}

	first, err := New(costs, nil).Run(p, 2500, EqualWeightMonthly{})
	require.NoError(t, err)
	second, err := New(costs, nil).Run(p, 2500, EqualWeightMonthly{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunConfigurationErrors(t *testing.T) {
	valid := testPanel([]time.Time{day(2024, time.March, 1)}, []string{"A"}, [][]float64{{100}})

	tests := []struct {
		name  string
		panel *domain.Panel
		cash  float64
		costs CostModel
	}{
		{name: "nil panel", panel: nil, cash: 1000},
		{name: "empty panel", panel: &domain.Panel{}, cash: 1000},
		{name: "zero cash", panel: valid, cash: 0},
		{name: "negative cash", panel: valid, cash: -100},
		{name: "negative fee", panel: valid, cash: 1000, costs: CostModel{FeeBps: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.costs, nil).Run(tt.panel, tt.cash, BuyAndHold{})
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
		})
	}
}

func TestRunRejectsNonPositiveClose(t *testing.T) {
	p := testPanel(
		[]time.Time{day(2024, time.March, 1), day(2024, time.March, 4)},
		[]string{"A"},
		[][]float64{{100}, {0}},
	)

	_, err := New(CostModel{}, nil).Run(p, 1000, BuyAndHold{})
	require.Error(t, err)
	assert.True(t, apperrors.IsIntegrity(err))

	p.Close[1][0] = math.NaN()
	_, err = New(CostModel{}, nil).Run(p, 1000, BuyAndHold{})
	require.Error(t, err)
	assert.True(t, apperrors.IsIntegrity(err))
}

func TestPolicyFromName(t *testing.T) {
	p, err := FromName("equal-weight-monthly")
	require.NoError(t, err)
	assert.Equal(t, "equal-weight-monthly", p.Name())

	p, err = FromName("buy-and-hold")
	require.NoError(t, err)
	assert.Equal(t, "buy-and-hold", p.Name())

	_, err = FromName("martingale")
	require.Error(t, err)
}
