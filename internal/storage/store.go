// Package storage persists pipeline output to SQLite and reads it back for
// the report and server binaries. All writes for one run happen in a single
// transaction: a failed run leaves no partial rows behind.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mktlab/pkg/contracts/domain"
)

// Store wraps the SQLite database holding run results.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema
// exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// The pipeline is single-threaded; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SaveRun persists one complete run atomically: the run record, the market
// panel, the baseline equity curve, the position snapshots and the trade
// ledger. Panel and baseline rows are upserted by date/asset; trades are
// replaced wholesale (the ledger is recomputed in full every run).
func (s *Store) SaveRun(ctx context.Context, run domain.Run, panel *domain.Panel, res SimArtifacts) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := upsertMarketDaily(ctx, tx, panel); err != nil {
		return err
	}
	if err := upsertEquity(ctx, tx, res.Equity); err != nil {
		return err
	}
	if err := upsertPositions(ctx, tx, res.Positions); err != nil {
		return err
	}
	if err := replaceTrades(ctx, tx, res.Trades); err != nil {
		return err
	}
	return tx.Commit()
}

// SimArtifacts bundles the simulator output tables for persistence.
type SimArtifacts struct {
	Equity    []domain.EquityPoint
	Positions []domain.Position
	Trades    []domain.Trade
}

func insertRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	universe, err := json.Marshal(run.Universe)
	if err != nil {
		return fmt.Errorf("failed to encode universe: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs(run_id, asof_date, created_at, universe, source_dir, notes)
		 VALUES(?,?,?,?,?,?)`,
		run.RunID,
		run.AsOfDate.Format(domain.DateFormat),
		run.CreatedAt.UTC().Format(time.RFC3339),
		string(universe),
		run.SourceDir,
		run.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func upsertMarketDaily(ctx context.Context, tx *sql.Tx, panel *domain.Panel) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO market_daily(asof_date, asset, close, ret_1d)
		 VALUES(?,?,?,?)
		 ON CONFLICT(asof_date, asset)
		 DO UPDATE SET close=excluded.close, ret_1d=excluded.ret_1d`)
	if err != nil {
		return fmt.Errorf("failed to prepare market_daily upsert: %w", err)
	}
	defer stmt.Close()

	for t, date := range panel.Dates {
		asof := date.Format(domain.DateFormat)
		for j, asset := range panel.Symbols {
			var ret any
			if panel.ReturnValid[t][j] {
				ret = panel.Return[t][j]
			}
			if _, err := stmt.ExecContext(ctx, asof, asset, panel.Close[t][j], ret); err != nil {
				return fmt.Errorf("failed to upsert market_daily %s/%s: %w", asof, asset, err)
			}
		}
	}
	return nil
}

func upsertEquity(ctx context.Context, tx *sql.Tx, equity []domain.EquityPoint) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO baseline_equity(asof_date, equity, cash)
		 VALUES(?,?,?)
		 ON CONFLICT(asof_date) DO UPDATE SET equity=excluded.equity, cash=excluded.cash`)
	if err != nil {
		return fmt.Errorf("failed to prepare baseline_equity upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range equity {
		if _, err := stmt.ExecContext(ctx, p.Date.Format(domain.DateFormat), p.Equity, p.Cash); err != nil {
			return fmt.Errorf("failed to upsert baseline_equity: %w", err)
		}
	}
	return nil
}

func upsertPositions(ctx context.Context, tx *sql.Tx, positions []domain.Position) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO baseline_positions(asof_date, asset, qty, value)
		 VALUES(?,?,?,?)
		 ON CONFLICT(asof_date, asset) DO UPDATE SET qty=excluded.qty, value=excluded.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare baseline_positions upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx, p.Date.Format(domain.DateFormat), p.Symbol, p.Quantity, p.Value); err != nil {
			return fmt.Errorf("failed to upsert baseline_positions: %w", err)
		}
	}
	return nil
}

func replaceTrades(ctx context.Context, tx *sql.Tx, trades []domain.Trade) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM baseline_trades`); err != nil {
		return fmt.Errorf("failed to clear baseline_trades: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO baseline_trades(asof_date, asset, side, qty, price, notional, fee_total)
		 VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare baseline_trades insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.Date.Format(domain.DateFormat), t.Symbol, string(t.Side),
			t.Quantity, t.Price, t.Notional, t.FeeTotal); err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}
	return nil
}
