// Command report prints a plain-text performance summary for the latest run
// in the store: the baseline equity curve's metrics plus a per-asset
// buy-and-hold comparison computed from the persisted close series, so the
// two are scored by the same code path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"mktlab/internal/config"
	"mktlab/internal/infrastructure"
	"mktlab/internal/stats"
	"mktlab/internal/storage"
	"mktlab/pkg/contracts/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file (default config.yaml if present)")
	dbPath := flag.String("db", "", "override SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if _, err := infrastructure.SetupLogger(cfg.Logging); err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	latest, err := store.LatestRun(ctx)
	if err != nil {
		return err
	}
	curve, err := store.EquityCurve(ctx)
	if err != nil {
		return err
	}

	s := stats.Summarize(curve)
	fmt.Printf("run %s  asof %s\n", latest.RunID, latest.AsOfDate.Format(domain.DateFormat))
	fmt.Printf("universe: %v\n", latest.Universe)
	if latest.Notes != "" {
		fmt.Printf("notes: %s\n", latest.Notes)
	}
	fmt.Println()
	fmt.Println("BASELINE")
	printSummary(s)

	fmt.Println()
	fmt.Println("PER-ASSET (buy-and-hold of the close series)")
	for _, asset := range latest.Universe {
		series, err := store.AssetCloses(ctx, asset)
		if err != nil {
			return err
		}
		if len(series) == 0 {
			fmt.Printf("%-8s excluded from run\n", asset)
			continue
		}
		as := stats.Summarize(series)
		fmt.Printf("%-8s CAGR=%-9s Vol=%-9s MaxDD=%-9s days=%d\n",
			asset,
			stats.FormatPct(as.CAGR),
			stats.FormatPct(as.Volatility),
			stats.FormatPct(as.MaxDrawdown),
			as.TradingDays)
	}
	return nil
}

func printSummary(s stats.Summary) {
	fmt.Printf("start=%.2f end=%.2f years=%.2f\n", s.StartEquity, s.EndEquity, s.Years)
	fmt.Printf("CAGR=%s  Vol=%s  MaxDD=%s  trading_days=%d\n",
		stats.FormatPct(s.CAGR),
		stats.FormatPct(s.Volatility),
		stats.FormatPct(s.MaxDrawdown),
		s.TradingDays)
}
