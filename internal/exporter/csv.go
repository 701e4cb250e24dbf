// Package exporter writes pipeline artifacts as CSV tables under the output
// directory. Formatting is deterministic (fixed column order, shortest
// round-trip float encoding) so identical runs produce byte-identical files.
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"mktlab/pkg/contracts/domain"
)

// Writer exports run artifacts to CSV files.
type Writer struct {
	outDir string
	logger *slog.Logger
}

// NewWriter creates a CSV writer rooted at outDir.
func NewWriter(outDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{outDir: outDir, logger: logger}
}

func (w *Writer) writeFile(name string, header []string, records [][]string) error {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(w.outDir, name)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	for i, record := range records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d of %s: %w", i, path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	w.logger.Info("wrote artifact", slog.String("file", path), slog.Int("rows", len(records)))
	return nil
}

// WritePanel writes panel_close.csv and panel_returns.csv. Null returns
// (first date, forward-filled sessions) are empty cells.
func (w *Writer) WritePanel(p *domain.Panel) error {
	header := append([]string{"Date"}, p.Symbols...)

	closes := make([][]string, p.Rows())
	returns := make([][]string, p.Rows())
	for t, date := range p.Dates {
		closeRow := make([]string, 1, len(header))
		retRow := make([]string, 1, len(header))
		closeRow[0] = date.Format(domain.DateFormat)
		retRow[0] = closeRow[0]
		for j := range p.Symbols {
			closeRow = append(closeRow, formatFloat(p.Close[t][j]))
			if p.ReturnValid[t][j] {
				retRow = append(retRow, formatFloat(p.Return[t][j]))
			} else {
				retRow = append(retRow, "")
			}
		}
		closes[t] = closeRow
		returns[t] = retRow
	}

	if err := w.writeFile("panel_close.csv", header, closes); err != nil {
		return err
	}
	return w.writeFile("panel_returns.csv", header, returns)
}

// WriteEquity writes baseline_equity.csv.
func (w *Writer) WriteEquity(equity []domain.EquityPoint) error {
	records := make([][]string, len(equity))
	for i, p := range equity {
		records[i] = []string{
			p.Date.Format(domain.DateFormat),
			formatFloat(p.Equity),
			formatFloat(p.Cash),
		}
	}
	return w.writeFile("baseline_equity.csv", []string{"Date", "equity", "cash"}, records)
}

// WritePositions writes baseline_positions.csv.
func (w *Writer) WritePositions(positions []domain.Position) error {
	records := make([][]string, len(positions))
	for i, p := range positions {
		records[i] = []string{
			p.Date.Format(domain.DateFormat),
			p.Symbol,
			formatFloat(p.Quantity),
			formatFloat(p.Value),
		}
	}
	return w.writeFile("baseline_positions.csv", []string{"Date", "asset", "qty", "value"}, records)
}

// WriteTrades writes baseline_trades.csv.
func (w *Writer) WriteTrades(trades []domain.Trade) error {
	records := make([][]string, len(trades))
	for i, t := range trades {
		records[i] = []string{
			t.Date.Format(domain.DateFormat),
			t.Symbol,
			string(t.Side),
			formatFloat(t.Quantity),
			formatFloat(t.Price),
			formatFloat(t.Notional),
			formatFloat(t.FeeTotal),
		}
	}
	return w.writeFile("baseline_trades.csv",
		[]string{"Date", "asset", "side", "qty", "price", "notional", "fee_total"}, records)
}

// WriteAudit writes sanitize_log.csv, the flat audit trail.
func (w *Writer) WriteAudit(audit []domain.AuditEntry) error {
	records := make([][]string, len(audit))
	for i, e := range audit {
		records[i] = []string{
			e.Date.Format(domain.DateFormat),
			e.Symbol,
			e.Reason,
			e.Action,
			e.Detail,
		}
	}
	return w.writeFile("sanitize_log.csv",
		[]string{"Date", "asset", "reason", "action", "detail"}, records)
}

// WriteCoverage writes coverage.csv, the quality gate's per-instrument report.
func (w *Writer) WriteCoverage(reports []domain.CoverageReport) error {
	records := make([][]string, len(reports))
	for i, r := range reports {
		records[i] = []string{
			r.Symbol,
			strconv.Itoa(r.Present),
			strconv.Itoa(r.Expected),
			formatFloat(r.Coverage),
			strconv.FormatBool(r.Included),
		}
	}
	return w.writeFile("coverage.csv",
		[]string{"asset", "present", "expected", "coverage", "included"}, records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
