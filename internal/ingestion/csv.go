// Package ingestion reads the upstream bar contract: one CSV per instrument
// with columns Date,open,high,low,close,volume, dates in ISO-8601, one row per
// trading day. Header matching is case-insensitive and whitespace-tolerant.
package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "mktlab/internal/errors"
	"mktlab/pkg/contracts/domain"
)

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// Loader reads raw bar series from a source directory.
type Loader struct {
	sourceDir string
	logger    *slog.Logger
}

// NewLoader creates a loader over sourceDir.
func NewLoader(sourceDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{sourceDir: sourceDir, logger: logger}
}

// LoadUniverse reads one bar series per universe symbol, keyed by symbol.
// A missing instrument file is a configuration error: the universe is declared
// up front and every member must be present.
func (l *Loader) LoadUniverse(universe []string) (map[string][]domain.Bar, error) {
	series := make(map[string][]domain.Bar, len(universe))
	for _, symbol := range universe {
		path, err := l.resolve(symbol)
		if err != nil {
			return nil, err
		}
		bars, err := l.ReadFile(path, symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", symbol, err)
		}
		series[symbol] = bars
	}
	return series, nil
}

func (l *Loader) resolve(symbol string) (string, error) {
	candidates := []string{
		filepath.Join(l.sourceDir, symbol+".csv"),
		filepath.Join(l.sourceDir, strings.ToLower(symbol)+".csv"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", apperrors.Config("universe", "no bar file for %s in %s", symbol, l.sourceDir)
}

// ReadFile parses one instrument CSV. Rows with an unparseable date or number
// are skipped with a warning; they carry no information the sanitizer could
// audit. Input order is preserved.
func (l *Loader) ReadFile(path, symbol string) ([]domain.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var bars []domain.Bar
	skipped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s line %d: %w", path, line, err)
		}
		bar, ok := parseRow(record, cols)
		if !ok {
			skipped++
			l.logger.Warn("skipping unparseable bar row",
				slog.String("symbol", symbol),
				slog.String("file", path),
				slog.Int("line", line))
			continue
		}
		bars = append(bars, bar)
	}

	l.logger.Info("loaded bar series",
		slog.String("symbol", symbol),
		slog.Int("rows", len(bars)),
		slog.Int("skipped", skipped))
	return bars, nil
}

// mapColumns maps required canonical column names to record indexes,
// case-insensitively.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns %v (header %v)", missing, header)
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (domain.Bar, bool) {
	field := func(name string) (string, bool) {
		i := cols[name]
		if i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	raw, ok := field("date")
	if !ok {
		return domain.Bar{}, false
	}
	date, err := parseDate(raw)
	if err != nil {
		return domain.Bar{}, false
	}

	values := make(map[string]float64, 5)
	for _, name := range []string{"open", "high", "low", "close", "volume"} {
		raw, ok := field(name)
		if !ok {
			return domain.Bar{}, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Bar{}, false
		}
		values[name] = v
	}

	return domain.Bar{
		Date:   date,
		Open:   values["open"],
		High:   values["high"],
		Low:    values["low"],
		Close:  values["close"],
		Volume: values["volume"],
	}, true
}
