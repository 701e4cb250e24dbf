package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mktlab/internal/storage"
	"mktlab/pkg/contracts/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seededStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "lab.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	run := domain.Run{
		RunID:     "run-1",
		AsOfDate:  day(2024, time.March, 5),
		CreatedAt: time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC),
		Universe:  []string{"SPY", "AAPL"},
	}
	panel := &domain.Panel{
		Dates:       []time.Time{day(2024, time.March, 4), day(2024, time.March, 5)},
		Symbols:     []string{"AAPL", "SPY"},
		Close:       [][]float64{{170, 510}, {173.4, 515.1}},
		Return:      [][]float64{{0, 0}, {0.02, 0.01}},
		ReturnValid: [][]bool{{false, false}, {true, true}},
	}
	artifacts := storage.SimArtifacts{
		Equity: []domain.EquityPoint{
			{Date: day(2024, time.March, 4), Equity: 1000},
			{Date: day(2024, time.March, 5), Equity: 1015},
		},
		Positions: []domain.Position{
			{Date: day(2024, time.March, 5), Symbol: "AAPL", Quantity: 2.94, Value: 509.8},
			{Date: day(2024, time.March, 5), Symbol: "SPY", Quantity: 0.98, Value: 504.8},
		},
		Trades: []domain.Trade{
			{Date: day(2024, time.March, 4), Symbol: "AAPL", Side: domain.TradeSideBuy,
				Quantity: 2.94, Price: 170.03, Notional: 499.9, FeeTotal: 0.25},
		},
	}
	require.NoError(t, s.SaveRun(context.Background(), run, panel, artifacts))
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLatestRun(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["run_id"])
}

func TestEquity(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/equity")
	require.Equal(t, http.StatusOK, rec.Code)

	var curve []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &curve))
	require.Len(t, curve, 2)
	assert.Equal(t, 1000.0, curve[0]["equity"])
	assert.Equal(t, 1015.0, curve[1]["equity"])
}

func TestTrades(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/trades")
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0]["symbol"])
	assert.Equal(t, "BUY", trades[0]["side"])
}

func TestPositionsDefaultsToLatestAsOf(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/positions")
	require.Equal(t, http.StatusOK, rec.Code)

	var positions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	assert.Len(t, positions, 2)
}

func TestPositionsExplicitDate(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/positions?date=2024-03-05")
	require.Equal(t, http.StatusOK, rec.Code)

	var positions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	assert.Len(t, positions, 2)
}

func TestPositionsBadDate(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/positions?date=03/05/2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	rec := get(t, h, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1000.0, body["start_equity"])
	assert.Equal(t, 1015.0, body["end_equity"])
	assert.Equal(t, 2.0, body["trading_days"])
	assert.NotNil(t, body["cagr"])
	// One daily return cannot produce a sample deviation.
	assert.Nil(t, body["volatility"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(seededStore(t), nil)
	require.Equal(t, http.StatusOK, get(t, h, "/api/equity").Code)

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `route="/api/equity"`)
	assert.Contains(t, body, `code="200"`)
	assert.Contains(t, body, "http_request_duration_seconds")
}

func TestMetricsRegistriesAreIndependent(t *testing.T) {
	// Two routers in one process must not collide on collector registration.
	store := seededStore(t)
	first := NewRouter(store, nil)
	second := NewRouter(store, nil)

	require.Equal(t, http.StatusOK, get(t, first, "/api/equity").Code)
	assert.NotContains(t, get(t, second, "/metrics").Body.String(), `route="/api/equity"`)
}

func TestEmptyStoreIsNotFound(t *testing.T) {
	s, err := storage.Open(filepath.Join(t.TempDir(), "empty.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := NewRouter(s, nil)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/runs/latest").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/positions").Code)
}
