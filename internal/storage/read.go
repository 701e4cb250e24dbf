package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mktlab/pkg/contracts/domain"
)

// ErrNoRuns is returned when the store holds no run records yet.
var ErrNoRuns = errors.New("no runs recorded")

// LatestRun returns the most recently created run record.
func (s *Store) LatestRun(ctx context.Context) (domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, asof_date, created_at, universe, source_dir, notes
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT 1`)

	var run domain.Run
	var asof, created, universe string
	var sourceDir, notes sql.NullString
	if err := row.Scan(&run.RunID, &asof, &created, &universe, &sourceDir, &notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Run{}, ErrNoRuns
		}
		return domain.Run{}, fmt.Errorf("failed to read latest run: %w", err)
	}

	var err error
	if run.AsOfDate, err = time.Parse(domain.DateFormat, asof); err != nil {
		return domain.Run{}, fmt.Errorf("bad asof_date in runs: %w", err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return domain.Run{}, fmt.Errorf("bad created_at in runs: %w", err)
	}
	if err := json.Unmarshal([]byte(universe), &run.Universe); err != nil {
		return domain.Run{}, fmt.Errorf("bad universe in runs: %w", err)
	}
	run.SourceDir = sourceDir.String
	run.Notes = notes.String
	return run, nil
}

// EquityCurve returns the baseline equity curve ordered by date.
func (s *Store) EquityCurve(ctx context.Context) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asof_date, equity, cash FROM baseline_equity ORDER BY asof_date`)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline_equity: %w", err)
	}
	defer rows.Close()

	var curve []domain.EquityPoint
	for rows.Next() {
		var asof string
		var p domain.EquityPoint
		if err := rows.Scan(&asof, &p.Equity, &p.Cash); err != nil {
			return nil, fmt.Errorf("failed to scan baseline_equity: %w", err)
		}
		if p.Date, err = time.Parse(domain.DateFormat, asof); err != nil {
			return nil, fmt.Errorf("bad asof_date in baseline_equity: %w", err)
		}
		curve = append(curve, p)
	}
	return curve, rows.Err()
}

// Trades returns the baseline trade ledger in execution order.
func (s *Store) Trades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asof_date, asset, side, qty, price, notional, fee_total
		 FROM baseline_trades ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline_trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var asof, side string
		var t domain.Trade
		if err := rows.Scan(&asof, &t.Symbol, &side, &t.Quantity, &t.Price, &t.Notional, &t.FeeTotal); err != nil {
			return nil, fmt.Errorf("failed to scan baseline_trades: %w", err)
		}
		if t.Date, err = time.Parse(domain.DateFormat, asof); err != nil {
			return nil, fmt.Errorf("bad asof_date in baseline_trades: %w", err)
		}
		t.Side = domain.TradeSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// PositionsOn returns the position snapshot for one date, in asset order.
func (s *Store) PositionsOn(ctx context.Context, date time.Time) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asof_date, asset, qty, value FROM baseline_positions
		 WHERE asof_date = ? ORDER BY asset`, date.Format(domain.DateFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline_positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var asof string
		var p domain.Position
		if err := rows.Scan(&asof, &p.Symbol, &p.Quantity, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan baseline_positions: %w", err)
		}
		if p.Date, err = time.Parse(domain.DateFormat, asof); err != nil {
			return nil, fmt.Errorf("bad asof_date in baseline_positions: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// AssetCloses returns one asset's close series from market_daily, ordered by
// date. Useful for buy-and-hold comparisons without rebuilding the panel.
func (s *Store) AssetCloses(ctx context.Context, asset string) ([]domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asof_date, close FROM market_daily WHERE asset = ? ORDER BY asof_date`, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to read market_daily: %w", err)
	}
	defer rows.Close()

	var series []domain.EquityPoint
	for rows.Next() {
		var asof string
		var p domain.EquityPoint
		if err := rows.Scan(&asof, &p.Equity); err != nil {
			return nil, fmt.Errorf("failed to scan market_daily: %w", err)
		}
		if p.Date, err = time.Parse(domain.DateFormat, asof); err != nil {
			return nil, fmt.Errorf("bad asof_date in market_daily: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}
