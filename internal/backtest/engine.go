// Package backtest drives a simulator over historical bars and collects the
// run's results.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/boxsim/internal/analyzer"
	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/metrics"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/simulator"
	"go.uber.org/zap"
)

// DefaultWarmupBars is the history length required before the first bar is
// traded.
const DefaultWarmupBars = 20

// Options tune a run beyond the strategy parameters.
type Options struct {
	// WarmupBars is the minimum history, current bar included, before a bar
	// reaches the simulator. Zero or less disables warmup.
	WarmupBars   int
	RiskFreeRate float64
}

// DefaultOptions returns the stock run options.
func DefaultOptions() Options {
	return Options{WarmupBars: DefaultWarmupBars, RiskFreeRate: 0.04}
}

// Engine runs backtests of one strategy configuration. Each Run uses a fresh
// simulator, so an Engine may be reused sequentially or shared by goroutines.
type Engine struct {
	cfg       simulator.Config
	opts      Options
	predictor predictor.Predictor
	logger    *zap.Logger
	metrics   *metrics.Registry
}

// New creates an engine. A nil predictor falls back to a fixed default range.
func New(cfg simulator.Config, pred predictor.Predictor, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pred == nil {
		pred = predictor.Fixed{Range: predictor.DefaultMarketRange}
	}
	return &Engine{
		cfg:       cfg,
		opts:      opts,
		predictor: pred,
		logger:    logger.With(zap.String("component", "backtest")),
	}
}

// SetMetrics attaches a registry that run outcomes are recorded in.
func (e *Engine) SetMetrics(reg *metrics.Registry) {
	e.metrics = reg
}

// Config returns the strategy configuration the engine runs.
func (e *Engine) Config() simulator.Config {
	return e.cfg
}

// Run replays bars, which must be sorted by time, and analyzes the outcome.
func (e *Engine) Run(ctx context.Context, bars []core.OHLCV) (*Result, error) {
	started := time.Now()
	res, err := e.run(ctx, bars)
	elapsed := time.Since(started)

	if e.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.RecordBacktest(status, elapsed.Seconds())
	}
	if err != nil {
		return nil, err
	}

	res.StartedAt = started
	res.Duration = elapsed
	e.logger.Info("backtest completed",
		zap.String("run_id", res.RunID),
		zap.Int("bars", res.BarsUsed),
		zap.Int("trades", res.Statistics.TotalTrades),
		zap.Float64("final_balance", res.Statistics.FinalBalance),
		zap.Float64("return_pct", res.Statistics.ReturnPct),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

func (e *Engine) run(ctx context.Context, bars []core.OHLCV) (*Result, error) {
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}

	runID := uuid.NewString()
	log := e.logger.With(zap.String("run_id", runID))
	log.Info("starting backtest",
		zap.String("symbol", e.cfg.Symbol),
		zap.Time("start", bars[0].Time),
		zap.Time("end", bars[len(bars)-1].Time),
		zap.Float64("initial_balance", e.cfg.InitialBalance),
		zap.Int("bars", len(bars)),
	)

	sim := simulator.New(e.cfg, log)
	rec := predictor.NewRecorder(e.predictor)

	used := 0
	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		history := bars[:i+1]
		if len(history) < e.opts.WarmupBars {
			continue
		}

		p := rec.Predict(bar, history)
		sim.OnTick(bar, p.MarketRange, p.Imbalance)
		used++
	}

	trades := sim.Trades()
	curve := sim.EquityCurve()
	if e.metrics != nil {
		e.metrics.AddBars(used)
		for _, t := range trades {
			e.metrics.RecordTradeClosed(string(t.Reason))
		}
	}

	return &Result{
		RunID:       runID,
		Symbol:      e.cfg.Symbol,
		Config:      e.cfg,
		Statistics:  sim.Statistics(),
		Metrics:     analyzer.New(e.cfg.InitialBalance, e.opts.RiskFreeRate).Analyze(curve, trades),
		EquityCurve: curve,
		Trades:      trades,
		Predictions: rec.History(),
		StartDate:   bars[0].Time,
		EndDate:     bars[len(bars)-1].Time,
		BarsTotal:   len(bars),
		BarsUsed:    used,
	}, nil
}
