package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/config"
	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/data"
	"github.com/newthinker/boxsim/internal/export"
	"github.com/newthinker/boxsim/internal/logger"
	"github.com/newthinker/boxsim/internal/metrics"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Flags shared by every command that loads bars.
var (
	dataFile      string
	dataFrom      string
	dataTo        string
	dataTimeframe string
	synthetic     bool
	exportResults bool
	metricsFile   string
)

func addDataFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&dataFile, "data", "", "OHLC CSV file (overrides backtest.data_file)")
	f.StringVar(&dataFrom, "from", "", "start date YYYY-MM-DD, inclusive")
	f.StringVar(&dataTo, "to", "", "end date YYYY-MM-DD, inclusive")
	f.StringVar(&dataTimeframe, "timeframe", "", "bar timeframe label, e.g. M5 or H1")
	f.BoolVar(&synthetic, "synthetic", false, "generate random-walk bars instead of reading a file")
	f.BoolVar(&exportResults, "export", false, "export results to the configured storage")
	f.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")
}

// loadConfig reads the config file (or defaults), applies the preset and
// command line overrides, then validates.
func loadConfig(preset string) (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	if preset != "" {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}

	if dataFile != "" {
		cfg.Backtest.DataFile = dataFile
	}
	if dataFrom != "" {
		cfg.Backtest.StartDate = dataFrom
	}
	if dataTo != "" {
		cfg.Backtest.EndDate = dataTo
	}
	if dataTimeframe != "" {
		cfg.Backtest.Timeframe = dataTimeframe
	}
	if synthetic {
		cfg.Backtest.Synthetic.Enabled = true
	}
	if exportResults {
		cfg.Export.Enabled = true
	}
	if metricsFile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.TextfilePath = metricsFile
	}
	if debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadBars reads or generates the bars selected by cfg.Backtest.
func loadBars(cfg *config.Config, log *zap.Logger) ([]core.OHLCV, error) {
	bt := cfg.Backtest
	loc, err := bt.Location()
	if err != nil {
		return nil, err
	}
	from, to, err := bt.DateRange()
	if err != nil {
		return nil, err
	}

	var bars []core.OHLCV
	if bt.DataFile != "" {
		bars, err = data.LoadCSVFile(bt.DataFile, data.LoadOptions{
			Symbol:   cfg.Strategy.Symbol,
			Interval: bt.Timeframe,
			Location: loc,
		})
		if err != nil {
			return nil, err
		}
		if err := data.Validate(bars); err != nil {
			return nil, err
		}
		if bt.Resample {
			if bars, err = data.Resample(bars, bt.Timeframe); err != nil {
				return nil, err
			}
		}
	} else {
		if from.IsZero() || to.IsZero() {
			return nil, core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("synthetic data needs start_date and end_date"))
		}
		bars, err = data.Synthetic(data.SyntheticConfig{
			Symbol:     cfg.Strategy.Symbol,
			Start:      from,
			End:        to.Add(-time.Nanosecond),
			Timeframe:  bt.Timeframe,
			BasePrice:  bt.Synthetic.BasePrice,
			Volatility: bt.Synthetic.Volatility,
			Seed:       bt.Synthetic.Seed,
		})
		if err != nil {
			return nil, err
		}
	}

	total := len(bars)
	bars = data.Filter(bars, from, to)
	if len(bars) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no bars between %s and %s", bt.StartDate, bt.EndDate))
	}

	log.Info("bars loaded",
		zap.String("source", dataSource(bt)),
		zap.Int("total", total),
		zap.Int("in_range", len(bars)),
		zap.Time("first", bars[0].Time),
		zap.Time("last", bars[len(bars)-1].Time),
	)
	return bars, nil
}

func dataSource(bt config.BacktestConfig) string {
	if bt.DataFile != "" {
		return bt.DataFile
	}
	return "synthetic"
}

func newPredictor(cfg *config.Config) (predictor.Predictor, error) {
	return predictor.New(cfg.Predictor.Mode, cfg.Predictor.DefaultMarketRange)
}

func runOptions(cfg *config.Config) backtest.Options {
	return backtest.Options{
		WarmupBars:   cfg.Backtest.WarmupBars,
		RiskFreeRate: cfg.Analysis.RiskFreeRate,
	}
}

func newExporter(cfg *config.Config, log *zap.Logger) (*export.Exporter, error) {
	store, err := archive.New(cfg.Export.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating export storage: %w", err)
	}
	return export.New(store, cfg.Export.Prefix, log), nil
}

// startMetrics returns nil when metrics are disabled. The returned stop
// function shuts down the listener and writes the textfile, if configured.
func startMetrics(cfg *config.Config, log *zap.Logger) (*metrics.Registry, func()) {
	if !cfg.Metrics.Enabled {
		return nil, func() {}
	}
	reg := metrics.NewRegistry()

	var server *http.Server
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", reg.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("serving metrics", zap.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	return reg, func() {
		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}
		if path := cfg.Metrics.TextfilePath; path != "" {
			if err := reg.WriteToTextfile(path); err != nil {
				log.Error("writing metrics textfile", zap.String("path", path), zap.Error(err))
				return
			}
			log.Info("metrics written", zap.String("path", path))
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return log, nil
}
