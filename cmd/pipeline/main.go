// Command pipeline executes one full batch run: load raw bars, sanitize,
// gate against the reference calendar, build the panel, replay the configured
// rebalancing policy, export CSV artifacts and persist the run to SQLite.
//
// Re-running with identical inputs is idempotent: the computed tables are
// byte-identical (run metadata timestamps aside).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mktlab/internal/config"
	"mktlab/internal/exporter"
	"mktlab/internal/infrastructure"
	"mktlab/internal/ingestion"
	"mktlab/internal/operations"
	"mktlab/internal/panel"
	"mktlab/internal/quality"
	"mktlab/internal/sanitize"
	"mktlab/internal/sim"
	"mktlab/internal/stats"
	"mktlab/internal/storage"
	"mktlab/pkg/contracts/domain"
)

func main() {
	if err := run(); err != nil {
		var stageErr *operations.StageError
		if errors.As(err, &stageErr) {
			slog.Error("pipeline failed",
				slog.String("stage", stageErr.StageID),
				slog.String("error", stageErr.Err.Error()))
		} else {
			slog.Error("pipeline failed", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file (default config.yaml if present)")
	sourceDir := flag.String("source", "", "override source directory of per-instrument CSVs")
	outDir := flag.String("out", "", "override output directory for CSV artifacts")
	dbPath := flag.String("db", "", "override SQLite database path")
	notes := flag.String("notes", "", "free-form notes recorded on the run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *sourceDir != "" {
		cfg.SourceDir = *sourceDir
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *notes != "" {
		cfg.Notes = *notes
	}

	logger, err := infrastructure.SetupLogger(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := sim.FromName(cfg.Sim.Policy)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	state := &operations.RunState{
		Run: domain.Run{
			RunID:     uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Universe:  cfg.Universe,
			SourceDir: cfg.SourceDir,
			Notes:     cfg.Notes,
		},
		Config: cfg,
	}

	logger.Info("pipeline starting",
		slog.String("run_id", state.Run.RunID),
		slog.Any("universe", cfg.Universe),
		slog.String("policy", policy.Name()),
		slog.String("source_dir", cfg.SourceDir))

	runner := operations.NewRunner(logger,
		&operations.IngestStage{Loader: ingestion.NewLoader(cfg.SourceDir, logger)},
		&operations.SanitizeStage{Sanitizer: sanitize.New(cfg.Quality.ExtremeMove, logger)},
		&operations.GateStage{Gate: quality.NewGate(cfg.Quality.MinCoverage, logger)},
		&operations.PanelStage{Builder: panel.NewBuilder(cfg.Quality.MaxFillGap, logger)},
		&operations.SimulateStage{
			Simulator: sim.New(sim.CostModel{
				FeeBps:      cfg.Sim.FeeBps,
				SlippageBps: cfg.Sim.SlippageBps,
				FixedCost:   cfg.Sim.FixedCost,
			}, logger),
			Policy: policy,
		},
		&operations.ExportStage{Writer: exporter.NewWriter(cfg.OutDir, logger)},
		&operations.PersistStage{Store: store},
	)

	if err := runner.Execute(ctx, state); err != nil {
		return err
	}

	summary := stats.Summarize(state.Baseline.Equity)
	logger.Info("pipeline complete",
		slog.String("run_id", state.Run.RunID),
		slog.String("asof", state.Run.AsOfDate.Format(domain.DateFormat)),
		slog.Int("instruments", state.Panel.Cols()),
		slog.Int("trading_days", summary.TradingDays),
		slog.Int("trades", len(state.Baseline.Trades)),
		slog.String("cagr", stats.FormatPct(summary.CAGR)),
		slog.String("max_drawdown", stats.FormatPct(summary.MaxDrawdown)))

	fmt.Printf("run %s complete: %d instruments, %d trading days, CAGR %s, MaxDD %s\n",
		state.Run.RunID, state.Panel.Cols(), summary.TradingDays,
		stats.FormatPct(summary.CAGR), stats.FormatPct(summary.MaxDrawdown))
	return nil
}
