// Package config loads and validates the pipeline configuration.
//
// Values are resolved in three layers, later layers winning: built-in
// defaults, an optional YAML config file, then MKT_-prefixed environment
// variables. Validation failures are ConfigurationErrors and abort before any
// stage runs.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "mktlab/internal/errors"
)

// Config is the complete pipeline configuration surface.
type Config struct {
	Universe  []string `yaml:"universe" envconfig:"UNIVERSE" validate:"required,min=1,unique"`
	Benchmark string   `yaml:"benchmark" envconfig:"BENCHMARK" validate:"required"`
	SourceDir string   `yaml:"source_dir" envconfig:"SOURCE_DIR" validate:"required"`
	OutDir    string   `yaml:"out_dir" envconfig:"OUT_DIR" validate:"required"`
	DBPath    string   `yaml:"db_path" envconfig:"DB_PATH" validate:"required"`
	Notes     string   `yaml:"notes" envconfig:"NOTES"`

	Quality QualityConfig `yaml:"quality" envconfig:"QUALITY"`
	Sim     SimConfig     `yaml:"sim" envconfig:"SIM"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// QualityConfig controls the sanitizer, quality gate and panel builder.
type QualityConfig struct {
	// MinCoverage is the minimum share of reference-calendar dates an
	// instrument must cover to stay in the effective universe.
	MinCoverage float64 `yaml:"min_coverage" envconfig:"MIN_COVERAGE" validate:"gt=0,lte=1"`
	// MaxFillGap is the maximum number of consecutive missing sessions the
	// panel builder will forward-fill before dropping the instrument.
	MaxFillGap int `yaml:"max_fill_gap" envconfig:"MAX_FILL_GAP" validate:"gte=0"`
	// ExtremeMove is the |close/prev_close - 1| threshold above which a bar is
	// flagged for review (never dropped).
	ExtremeMove float64 `yaml:"extreme_move" envconfig:"EXTREME_MOVE" validate:"gt=0"`
}

// Supported rebalancing policies.
const (
	PolicyEqualWeightMonthly = "equal-weight-monthly"
	PolicyBuyAndHold         = "buy-and-hold"
)

// SimConfig holds the simulator inputs: starting cash, the cost model and the
// rebalancing policy.
type SimConfig struct {
	InitialCash float64 `yaml:"initial_cash" envconfig:"INITIAL_CASH" validate:"gt=0"`
	FeeBps      float64 `yaml:"fee_bps" envconfig:"FEE_BPS" validate:"gte=0"`
	SlippageBps float64 `yaml:"slippage_bps" envconfig:"SLIPPAGE_BPS" validate:"gte=0"`
	FixedCost   float64 `yaml:"fixed_cost" envconfig:"FIXED_COST" validate:"gte=0"`
	Policy      string  `yaml:"policy" envconfig:"POLICY" validate:"oneof=equal-weight-monthly buy-and-hold"`
}

// ServerConfig configures the read-only results API.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Benchmark: "SPY",
		SourceDir: "data/processed_sanitized",
		OutDir:    "data/out",
		DBPath:    "data/market_lab.sqlite3",
		Quality: QualityConfig{
			MinCoverage: 0.95,
			MaxFillGap:  3,
			ExtremeMove: 0.5,
		},
		Sim: SimConfig{
			InitialCash: 1000,
			FeeBps:      5,
			SlippageBps: 2,
			FixedCost:   0,
			Policy:      PolicyEqualWeightMonthly,
		},
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/mktlab.log",
		},
	}
}

// Load resolves the configuration: defaults, then the YAML file at path (if
// path is empty, "config.yaml" is used when present), then MKT_ environment
// variables. The result is validated before being returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("MKT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) {
	for i, sym := range cfg.Universe {
		cfg.Universe[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	cfg.Benchmark = strings.ToUpper(strings.TrimSpace(cfg.Benchmark))
}

// Validate checks the configuration and returns a ConfigurationError on the
// first violation found.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if ok := asValidationErrors(err, &errs); ok && len(errs) > 0 {
			fe := errs[0]
			return apperrors.Config(fieldPath(fe), "failed %q check (value %v)", fe.Tag(), fe.Value())
		}
		return apperrors.Config("config", "%v", err)
	}

	if !slices.Contains(c.Universe, c.Benchmark) {
		return apperrors.Config("benchmark", "calendar anchor %q is not part of the universe", c.Benchmark)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if ve, ok := err.(validator.ValidationErrors); ok {
		*target = ve
		return true
	}
	return false
}

func fieldPath(fe validator.FieldError) string {
	// Namespace is "Config.Sim.InitialCash"; drop the struct root.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
