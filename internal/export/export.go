// Package export writes backtest artifacts to an archive store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/newthinker/boxsim/internal/analyzer"
	"github.com/newthinker/boxsim/internal/backtest"
	"github.com/newthinker/boxsim/internal/core"
	"github.com/newthinker/boxsim/internal/optimize"
	"github.com/newthinker/boxsim/internal/simulator"
	"github.com/newthinker/boxsim/internal/storage/archive"
	"go.uber.org/zap"
)

// Artifact names written under a run directory.
const (
	EquityCurveFile = "equity_curve.csv"
	TradesFile      = "trades_log.csv"
	PredictionsFile = "predictions.csv"
	MetricsFile     = "metrics.json"
	ReportFile      = "report.txt"
	ComparisonFile  = "comparison.csv"
	SweepFile       = "sweep.csv"
)

// Summary is the metrics.json document.
type Summary struct {
	RunID           string               `json:"run_id"`
	Symbol          string               `json:"symbol"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	BarsUsed        int                  `json:"bars_used"`
	DurationSeconds float64              `json:"duration_seconds"`
	Config          simulator.Config     `json:"config"`
	Statistics      simulator.Statistics `json:"ea_statistics"`
	Metrics         analyzer.Metrics     `json:"performance_metrics"`
}

// Exporter writes artifacts under a key prefix of a Storage.
type Exporter struct {
	store  archive.Storage
	prefix string
	logger *zap.Logger
}

// New creates an exporter. Every key it writes starts with prefix.
func New(store archive.Storage, prefix string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		store:  store,
		prefix: prefix,
		logger: logger.With(zap.String("component", "export")),
	}
}

func (e *Exporter) key(parts ...string) string {
	return path.Join(append([]string{e.prefix}, parts...)...)
}

func (e *Exporter) put(ctx context.Context, key string, render func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return core.WrapError(core.ErrExportFailed, fmt.Errorf("render %s: %w", key, err))
	}
	if err := e.store.Write(ctx, key, buf.Bytes()); err != nil {
		return core.WrapError(core.ErrExportFailed, fmt.Errorf("write %s: %w", key, err))
	}
	e.logger.Debug("artifact written", zap.String("key", key), zap.Int("bytes", buf.Len()))
	return nil
}

// ExportRun writes every artifact of res under <prefix>/<run id>/ and returns
// that directory key.
func (e *Exporter) ExportRun(ctx context.Context, res *backtest.Result) (string, error) {
	dir := e.key(res.RunID)

	summary := Summary{
		RunID:           res.RunID,
		Symbol:          res.Symbol,
		StartDate:       res.StartDate,
		EndDate:         res.EndDate,
		BarsUsed:        res.BarsUsed,
		DurationSeconds: res.Duration.Seconds(),
		Config:          res.Config,
		Statistics:      res.Statistics,
		Metrics:         res.Metrics,
	}

	artifacts := []struct {
		name   string
		render func(*bytes.Buffer) error
	}{
		{EquityCurveFile, func(b *bytes.Buffer) error { return WriteEquityCurve(b, res.EquityCurve) }},
		{TradesFile, func(b *bytes.Buffer) error { return WriteTrades(b, res.Trades) }},
		{PredictionsFile, func(b *bytes.Buffer) error { return WritePredictions(b, res.Predictions) }},
		{MetricsFile, func(b *bytes.Buffer) error { return writeJSON(b, summary) }},
		{ReportFile, func(b *bytes.Buffer) error { return analyzer.WriteReport(b, res.Metrics) }},
	}
	for _, a := range artifacts {
		if err := e.put(ctx, path.Join(dir, a.name), a.render); err != nil {
			return "", err
		}
	}

	e.logger.Info("run exported", zap.String("run_id", res.RunID), zap.String("dir", dir))
	return dir, nil
}

// ExportComparison writes comparison.csv under <prefix>/<label>/.
func (e *Exporter) ExportComparison(ctx context.Context, label string, summaries []backtest.Summary) (string, error) {
	key := e.key(label, ComparisonFile)
	if err := e.put(ctx, key, func(b *bytes.Buffer) error { return WriteComparison(b, summaries) }); err != nil {
		return "", err
	}
	e.logger.Info("comparison exported", zap.String("key", key), zap.Int("runs", len(summaries)))
	return key, nil
}

// ExportSweep writes sweep.csv under <prefix>/<label>/.
func (e *Exporter) ExportSweep(ctx context.Context, label, objective string, trials []optimize.Trial) (string, error) {
	key := e.key(label, SweepFile)
	if err := e.put(ctx, key, func(b *bytes.Buffer) error { return WriteTrials(b, objective, trials) }); err != nil {
		return "", err
	}
	e.logger.Info("sweep exported", zap.String("key", key), zap.Int("trials", len(trials)))
	return key, nil
}

func writeJSON(b *bytes.Buffer, v any) error {
	enc := json.NewEncoder(b)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
