// Package optimize sweeps strategy parameters over a grid and ranks the runs.
package optimize

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/metrics"
	"github.com/newthinker/boxsim/internal/predictor"
	"github.com/newthinker/boxsim/internal/simulator"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Trial is the outcome of one grid combination.
type Trial struct {
	Index  int              `json:"index"`
	Params Params           `json:"params"`
	Score  float64          `json:"score"`
	Result *backtest.Result `json:"-"`
	Err    error            `json:"-"`
}

// Config controls a sweep.
type Config struct {
	Workers   int
	Objective string
}

// Optimizer runs every combination of a grid against the same bars.
type Optimizer struct {
	base      simulator.Config
	predictor predictor.Predictor
	opts      backtest.Options
	workers   int
	objective Objective
	logger    *zap.Logger
	metrics   *metrics.Registry
}

// New creates an optimizer around a base strategy config. The predictor is
// shared by all workers and must be safe for concurrent use.
func New(base simulator.Config, pred predictor.Predictor, opts backtest.Options, cfg Config, logger *zap.Logger) (*Optimizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	obj, err := ObjectiveByName(cfg.Objective)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Optimizer{
		base:      base,
		predictor: pred,
		opts:      opts,
		workers:   workers,
		objective: obj,
		logger:    logger.With(zap.String("component", "optimize")),
	}, nil
}

// SetMetrics attaches a registry for sweep progress and per-run metrics.
func (o *Optimizer) SetMetrics(reg *metrics.Registry) {
	o.metrics = reg
}

// Objective returns the objective trials are ranked by.
func (o *Optimizer) Objective() Objective {
	return o.objective
}

// Run backtests every combination of grid and returns the trials best first.
// Ties keep grid order and failed trials sort last. On cancellation no new
// combinations start; the trials that finished are returned with ctx.Err().
func (o *Optimizer) Run(ctx context.Context, bars []core.OHLCV, grid Grid) ([]Trial, error) {
	combos, err := grid.Combinations()
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}

	started := time.Now()
	o.logger.Info("starting parameter sweep",
		zap.Int("combinations", len(combos)),
		zap.Int("workers", o.workers),
		zap.String("objective", o.objective.Name),
	)
	if o.metrics != nil {
		o.metrics.StartSweep(len(combos))
	}

	p := pool.NewWithResults[Trial]().WithContext(ctx).WithMaxGoroutines(o.workers)
	for i, params := range combos {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) (Trial, error) {
			return o.trial(ctx, bars, i, params), nil
		})
	}
	trials, _ := p.Wait()

	finished := trials[:0]
	for _, t := range trials {
		if ctx.Err() != nil && errors.Is(t.Err, ctx.Err()) {
			continue
		}
		finished = append(finished, t)
	}
	o.rank(finished)

	o.logger.Info("parameter sweep completed",
		zap.Int("trials", len(finished)),
		zap.Duration("duration", time.Since(started)),
	)
	return finished, ctx.Err()
}

func (o *Optimizer) trial(ctx context.Context, bars []core.OHLCV, index int, params Params) Trial {
	t := Trial{Index: index, Params: params}
	if o.metrics != nil {
		o.metrics.SweepWorkerBusy(1)
		defer o.metrics.SweepWorkerBusy(-1)
	}

	cfg, err := params.Apply(o.base)
	if err == nil {
		engine := backtest.New(cfg, o.predictor, o.opts, o.trialLogger())
		engine.SetMetrics(o.metrics)
		t.Result, err = engine.Run(ctx, bars)
	}
	t.Err = err

	status := "success"
	if err != nil {
		status = "error"
		o.logger.Warn("trial failed", zap.Int("index", index), zap.Stringer("params", params), zap.Error(err))
	} else {
		t.Score = o.objective.Value(t.Result)
		o.logger.Debug("trial finished",
			zap.Int("index", index),
			zap.Stringer("params", params),
			zap.Float64(o.objective.Name, t.Score),
		)
	}
	if o.metrics != nil {
		o.metrics.RecordSweepRun(status)
	}
	return t
}

// trialLogger keeps per-run chatter out of sweep logs.
func (o *Optimizer) trialLogger() *zap.Logger {
	return o.logger.Named("trial").WithOptions(zap.IncreaseLevel(zap.WarnLevel))
}

func (o *Optimizer) rank(trials []Trial) {
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		if a.Err == nil && a.Score != b.Score {
			return o.objective.Better(a.Score, b.Score)
		}
		return a.Index < b.Index
	})
}
