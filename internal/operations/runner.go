// Package operations sequences the pipeline stages.
//
// The pipeline is a strictly sequential batch: every stage consumes the
// complete output of its predecessor (the quality gate and the panel builder
// both need whole series before deciding inclusion). A fatal error stops the
// run at the stage boundary where it was detected; the failing stage is named
// in the returned error.
package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mktlab/internal/config"
	"mktlab/internal/quality"
	"mktlab/internal/sanitize"
	"mktlab/internal/sim"
	"mktlab/pkg/contracts/domain"
)

// Stage identifiers, in pipeline order.
const (
	StageIngest   = "ingest"
	StageSanitize = "sanitize"
	StageGate     = "quality-gate"
	StagePanel    = "panel"
	StageSimulate = "simulate"
	StageExport   = "export"
	StagePersist  = "persist"
)

// RunState carries artifacts between stages. Stages only read what their
// predecessors wrote; nothing here is shared mutable state across goroutines.
type RunState struct {
	Run    domain.Run
	Config *config.Config

	RawBars    map[string][]domain.Bar
	Sanitized  []sanitize.Result
	AuditLog   []domain.AuditEntry
	Gate       *quality.Result
	Panel      *domain.Panel
	Exclusions []domain.Exclusion
	Baseline   *sim.Result
}

// Stage is one pipeline step.
type Stage interface {
	ID() string
	Name() string
	Run(ctx context.Context, state *RunState) error
}

// StageError reports which stage a run failed in.
type StageError struct {
	StageID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.StageID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Runner executes stages in order.
type Runner struct {
	stages []Stage
	logger *slog.Logger
}

// NewRunner creates a runner over the given stages.
func NewRunner(logger *slog.Logger, stages ...Stage) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{stages: stages, logger: logger}
}

// Execute runs every stage against state, stopping at the first failure.
func (r *Runner) Execute(ctx context.Context, state *RunState) error {
	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return &StageError{StageID: stage.ID(), Err: err}
		}

		r.logger.Info("stage starting",
			slog.String("stage", stage.ID()),
			slog.String("run_id", state.Run.RunID))
		start := time.Now()

		if err := stage.Run(ctx, state); err != nil {
			r.logger.Error("stage failed",
				slog.String("stage", stage.ID()),
				slog.String("run_id", state.Run.RunID),
				slog.String("error", err.Error()))
			return &StageError{StageID: stage.ID(), Err: err}
		}

		r.logger.Info("stage complete",
			slog.String("stage", stage.ID()),
			slog.String("run_id", state.Run.RunID),
			slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}
