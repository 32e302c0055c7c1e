package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/logger"
	"github.com/newthinker/boxsim/internal/optimize"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/simulator"
	"github.com/newthinker/boxsim/internal/storage/archive"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

type Config struct {
	Backtest  BacktestConfig   `mapstructure:"backtest"`
	Strategy  simulator.Config `mapstructure:"strategy"`
	Analysis  AnalysisConfig   `mapstructure:"analysis"`
	Predictor PredictorConfig  `mapstructure:"predictor"`
	Optimize  OptimizeConfig   `mapstructure:"optimize"`
	Export    ExportConfig     `mapstructure:"export"`
	Log       logger.Config    `mapstructure:"log"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
}

// BacktestConfig selects the bars a run is fed.
type BacktestConfig struct {
	DataFile   string          `mapstructure:"data_file"`
	StartDate  string          `mapstructure:"start_date"` // inclusive, YYYY-MM-DD
	EndDate    string          `mapstructure:"end_date"`   // inclusive, YYYY-MM-DD
	Timeframe  string          `mapstructure:"timeframe"`
	Resample   bool            `mapstructure:"resample"`
	WarmupBars int             `mapstructure:"warmup_bars"`
	Timezone   string          `mapstructure:"timezone"`
	Synthetic  SyntheticConfig `mapstructure:"synthetic"`
}

// SyntheticConfig enables generated bars when no data file is given.
type SyntheticConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	BasePrice  float64 `mapstructure:"base_price"`
	Volatility float64 `mapstructure:"volatility"`
	Seed       int64   `mapstructure:"seed"`
}

type AnalysisConfig struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
}

type PredictorConfig struct {
	Mode               string  `mapstructure:"mode"`
	DefaultMarketRange float64 `mapstructure:"default_market_range"`
}

// OptimizeConfig holds parameter sweep settings.
type OptimizeConfig struct {
	Workers   int                  `mapstructure:"workers"`
	Objective string               `mapstructure:"objective"`
	Top       int                  `mapstructure:"top"`
	Grid      map[string][]float64 `mapstructure:"grid"`
}

// ExportConfig holds result export settings.
type ExportConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Prefix  string         `mapstructure:"prefix"`
	Storage archive.Config `mapstructure:"storage"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TextfilePath string `mapstructure:"textfile_path"`
	ListenAddr   string `mapstructure:"listen_addr"`
}

// Load reads configuration from file. Keys the file leaves out keep their
// Defaults value.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Backtest: BacktestConfig{
			StartDate:  "2024-01-01",
			EndDate:    "2024-12-31",
			Timeframe:  "M5",
			WarmupBars: 20,
			Timezone:   "UTC",
			Synthetic: SyntheticConfig{
				BasePrice:  2000,
				Volatility: 0.001,
				Seed:       42,
			},
		},
		Strategy: simulator.DefaultConfig(),
		Analysis: AnalysisConfig{
			RiskFreeRate: 0.04,
		},
		Predictor: PredictorConfig{
			Mode:               predictor.ModeRuleBased,
			DefaultMarketRange: predictor.DefaultMarketRange,
		},
		Optimize: OptimizeConfig{
			Workers:   4,
			Objective: optimize.ObjectiveTotalReturnPct,
			Top:       10,
		},
		Export: ExportConfig{
			Prefix: "runs",
			Storage: archive.Config{
				Type: archive.TypeLocalFS,
				Path: "backtest_results",
			},
		},
		Log: logger.Config{
			Level:  "info",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Backtest.DataFile == "" && !c.Backtest.Synthetic.Enabled {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("backtest data_file required unless synthetic data is enabled"))
	}
	if c.Backtest.WarmupBars < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("warmup_bars cannot be negative, got %d", c.Backtest.WarmupBars))
	}
	if _, _, err := c.Backtest.DateRange(); err != nil {
		return err
	}

	// Strategy validation covers only what the harness relies on
	if c.Strategy.InitialBalance <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_balance must be positive, got %f", c.Strategy.InitialBalance))
	}
	windows := map[string]simulator.PeriodWindow{
		"period1": c.Strategy.Period1,
		"period2": c.Strategy.Period2,
		"period3": c.Strategy.Period3,
	}
	for name, w := range windows {
		if w.StartHour < 0 || w.StartHour > 24 || w.EndHour < 0 || w.EndHour > 24 {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s hours must be between 0 and 24, got %d-%d", name, w.StartHour, w.EndHour))
		}
	}

	if _, err := predictor.New(c.Predictor.Mode, c.Predictor.DefaultMarketRange); err != nil {
		return err
	}

	if c.Optimize.Workers < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("optimize workers must be at least 1, got %d", c.Optimize.Workers))
	}
	if _, err := optimize.ObjectiveByName(c.Optimize.Objective); err != nil {
		return err
	}

	if c.Export.Enabled {
		switch c.Export.Storage.Type {
		case archive.TypeLocalFS, "":
			if c.Export.Storage.Path == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("export storage path required for localfs"))
			}
		case archive.TypeS3:
			if c.Export.Storage.S3.Bucket == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("export s3 bucket required when storage type is s3"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown export storage type %q", c.Export.Storage.Type))
		}
	}

	return nil
}

// Location resolves the timezone bar timestamps are read in.
func (b BacktestConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("timezone: %w", err))
	}
	return loc, nil
}

// DateRange returns the half-open [from, to) interval covering StartDate
// through EndDate. An empty bound is returned as the zero time.
func (b BacktestConfig) DateRange() (from, to time.Time, err error) {
	loc, err := b.Location()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if b.StartDate != "" {
		from, err = time.ParseInLocation(dateLayout, b.StartDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("start_date: %w", err))
		}
	}
	if b.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, b.EndDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end_date: %w", err))
		}
		to = end.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("start_date %s is after end_date %s", b.StartDate, b.EndDate))
	}
	return from, to, nil
}
