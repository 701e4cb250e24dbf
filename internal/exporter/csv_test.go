package exporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mktlab/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func readArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func testPanel() *domain.Panel {
	return &domain.Panel{
		Dates:   []time.Time{day(2024, time.March, 1), day(2024, time.March, 4)},
		Symbols: []string{"AAPL", "SPY"},
		Close: [][]float64{
			{170, 510},
			{173.4, 510},
		},
		Return: [][]float64{
			{0, 0},
			{0.02, 0},
		},
		ReturnValid: [][]bool{
			{false, false},
			{true, false},
		},
	}
}

func TestWritePanel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewWriter(dir, nil).WritePanel(testPanel()))

	assert.Equal(t,
		"Date,AAPL,SPY\n"+
			"2024-03-01,170,510\n"+
			"2024-03-04,173.4,510\n",
		readArtifact(t, dir, "panel_close.csv"))

	// Null returns (first date, filled sessions) are empty cells, not zeros.
	assert.Equal(t,
		"Date,AAPL,SPY\n"+
			"2024-03-01,,\n"+
			"2024-03-04,0.02,\n",
		readArtifact(t, dir, "panel_returns.csv"))
}

func TestWriteEquityAndTrades(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	require.NoError(t, w.WriteEquity([]domain.EquityPoint{
		{Date: day(2024, time.March, 1), Equity: 1000, Cash: 0},
		{Date: day(2024, time.March, 4), Equity: 1050.5, Cash: 0.25},
	}))
	assert.Equal(t,
		"Date,equity,cash\n2024-03-01,1000,0\n2024-03-04,1050.5,0.25\n",
		readArtifact(t, dir, "baseline_equity.csv"))

	require.NoError(t, w.WriteTrades([]domain.Trade{
		{Date: day(2024, time.March, 1), Symbol: "AAPL", Side: domain.TradeSideBuy,
			Quantity: 2.5, Price: 170.034, Notional: 425.085, FeeTotal: 0.21},
	}))
	assert.Equal(t,
		"Date,asset,side,qty,price,notional,fee_total\n"+
			"2024-03-01,AAPL,BUY,2.5,170.034,425.085,0.21\n",
		readArtifact(t, dir, "baseline_trades.csv"))
}

func TestWriteAuditAndCoverage(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, nil)

	require.NoError(t, w.WriteAudit([]domain.AuditEntry{
		{Date: day(2024, time.March, 1), Symbol: "AAPL",
			Reason: domain.ReasonInvalidOHLC, Action: domain.ActionDropped, Detail: "low above high"},
	}))
	audit := readArtifact(t, dir, "sanitize_log.csv")
	assert.Contains(t, audit, "Date,asset,reason,action,detail\n")
	assert.Contains(t, audit, "2024-03-01,AAPL,INVALID_OHLC,DROPPED,low above high\n")

	require.NoError(t, w.WriteCoverage([]domain.CoverageReport{
		{Symbol: "AAPL", Present: 19, Expected: 20, Coverage: 0.95, Included: true},
	}))
	assert.Equal(t,
		"asset,present,expected,coverage,included\nAAPL,19,20,0.95,true\n",
		readArtifact(t, dir, "coverage.csv"))
}

func TestWritesAreDeterministic(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, NewWriter(first, nil).WritePanel(testPanel()))
	require.NoError(t, NewWriter(second, nil).WritePanel(testPanel()))

	assert.Equal(t,
		readArtifact(t, first, "panel_close.csv"),
		readArtifact(t, second, "panel_close.csv"))
	assert.Equal(t,
		readArtifact(t, first, "panel_returns.csv"),
		readArtifact(t, second, "panel_returns.csv"))
}
