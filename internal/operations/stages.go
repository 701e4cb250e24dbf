package operations

import (
	"context"
	"fmt"
	"strings"

	"mktlab/internal/exporter"
	"mktlab/internal/ingestion"
	"mktlab/internal/panel"
	"mktlab/internal/quality"
	"mktlab/internal/sanitize"
	"mktlab/internal/sim"
	"mktlab/internal/storage"
	"mktlab/pkg/contracts/domain"
)

// IngestStage reads the raw bar series for every universe instrument.
type IngestStage struct {
	Loader *ingestion.Loader
}

func (s *IngestStage) ID() string   { return StageIngest }
func (s *IngestStage) Name() string { return "Load raw bars" }

func (s *IngestStage) Run(ctx context.Context, state *RunState) error {
	raw, err := s.Loader.LoadUniverse(state.Config.Universe)
	if err != nil {
		return err
	}
	state.RawBars = raw
	return nil
}

// SanitizeStage cleans every series and collects the flat audit log.
type SanitizeStage struct {
	Sanitizer *sanitize.Sanitizer
}

func (s *SanitizeStage) ID() string   { return StageSanitize }
func (s *SanitizeStage) Name() string { return "Sanitize series" }

func (s *SanitizeStage) Run(ctx context.Context, state *RunState) error {
	results, err := s.Sanitizer.Universe(ctx, state.Config.Universe, state.RawBars)
	if err != nil {
		return err
	}
	state.Sanitized = results
	for _, r := range results {
		state.AuditLog = append(state.AuditLog, r.Audit...)
	}
	return nil
}

// GateStage derives the reference calendar and decides the effective universe.
type GateStage struct {
	Gate *quality.Gate
}

func (s *GateStage) ID() string   { return StageGate }
func (s *GateStage) Name() string { return "Quality gate" }

func (s *GateStage) Run(ctx context.Context, state *RunState) error {
	result, err := s.Gate.Check(state.Config.Benchmark, state.Sanitized)
	if err != nil {
		return err
	}
	state.Gate = result
	state.Exclusions = append(state.Exclusions, result.Exclusions...)
	return nil
}

// PanelStage aligns the effective universe onto the calendar and stamps the
// run's as-of date (the calendar's last trading date).
type PanelStage struct {
	Builder *panel.Builder
}

func (s *PanelStage) ID() string   { return StagePanel }
func (s *PanelStage) Name() string { return "Build panel" }

func (s *PanelStage) Run(ctx context.Context, state *RunState) error {
	p, exclusions, err := s.Builder.Build(state.Gate.Calendar, state.Gate.Included)
	state.Exclusions = append(state.Exclusions, exclusions...)
	if err != nil {
		return err
	}
	state.Panel = p
	state.Run.AsOfDate = p.Dates[len(p.Dates)-1]
	return nil
}

// SimulateStage replays the configured policy over the panel.
type SimulateStage struct {
	Simulator *sim.Simulator
	Policy    sim.Policy
}

func (s *SimulateStage) ID() string   { return StageSimulate }
func (s *SimulateStage) Name() string { return "Simulate baseline" }

func (s *SimulateStage) Run(ctx context.Context, state *RunState) error {
	result, err := s.Simulator.Run(state.Panel, state.Config.Sim.InitialCash, s.Policy)
	if err != nil {
		return err
	}
	state.Baseline = result
	return nil
}

// ExportStage writes the CSV artifacts.
type ExportStage struct {
	Writer *exporter.Writer
}

func (s *ExportStage) ID() string   { return StageExport }
func (s *ExportStage) Name() string { return "Export CSV artifacts" }

func (s *ExportStage) Run(ctx context.Context, state *RunState) error {
	if err := s.Writer.WritePanel(state.Panel); err != nil {
		return err
	}
	if err := s.Writer.WriteEquity(state.Baseline.Equity); err != nil {
		return err
	}
	if err := s.Writer.WritePositions(state.Baseline.Positions); err != nil {
		return err
	}
	if err := s.Writer.WriteTrades(state.Baseline.Trades); err != nil {
		return err
	}
	if err := s.Writer.WriteAudit(state.AuditLog); err != nil {
		return err
	}
	return s.Writer.WriteCoverage(state.Gate.Reports)
}

// PersistStage commits the run to the store in one transaction. It runs last:
// a run only becomes visible to readers once every other stage has succeeded.
type PersistStage struct {
	Store *storage.Store
}

func (s *PersistStage) ID() string   { return StagePersist }
func (s *PersistStage) Name() string { return "Persist run" }

func (s *PersistStage) Run(ctx context.Context, state *RunState) error {
	run := state.Run
	run.Notes = joinNotes(run.Notes, state.Exclusions)
	return s.Store.SaveRun(ctx, run, state.Panel, storage.SimArtifacts{
		Equity:    state.Baseline.Equity,
		Positions: state.Baseline.Positions,
		Trades:    state.Baseline.Trades,
	})
}

// joinNotes appends degraded-universe exclusions to the run notes so a
// successful-but-reduced run reports what it dropped and why.
func joinNotes(notes string, exclusions []domain.Exclusion) string {
	if len(exclusions) == 0 {
		return notes
	}
	parts := make([]string, len(exclusions))
	for i, e := range exclusions {
		parts[i] = fmt.Sprintf("%s excluded: %s", e.Symbol, e.Reason)
	}
	suffix := strings.Join(parts, "; ")
	if notes == "" {
		return suffix
	}
	return notes + " | " + suffix
}
