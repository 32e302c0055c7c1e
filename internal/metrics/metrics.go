package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	barsProcessed    prometheus.Counter
	tradesClosed     *prometheus.CounterVec
	finalBalance     *prometheus.GaugeVec

	sweepRuns      *prometheus.CounterVec
	sweepRemaining prometheus.Gauge
	sweepWorkers   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxsim_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxsim_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.barsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boxsim_bars_processed_total",
			Help: "Total number of bars fed to the simulator",
		},
	)
	r.tradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxsim_trades_closed_total",
			Help: "Total number of closed orders by close reason",
		},
		[]string{"reason"},
	)
	r.finalBalance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "boxsim_final_balance",
			Help: "Final balance of the latest run per label",
		},
		[]string{"run"},
	)
	r.sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxsim_sweep_runs_total",
			Help: "Parameter sweep combinations finished",
		},
		[]string{"status"},
	)
	r.sweepRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boxsim_sweep_remaining",
			Help: "Parameter sweep combinations not yet finished",
		},
	)
	r.sweepWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boxsim_sweep_workers_busy",
			Help: "Sweep workers currently running a backtest",
		},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.tradesClosed)
	reg.MustRegister(r.finalBalance)
	reg.MustRegister(r.sweepRuns)
	reg.MustRegister(r.sweepRemaining)
	reg.MustRegister(r.sweepWorkers)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// AddBars counts bars fed to the simulator.
func (r *Registry) AddBars(n int) {
	r.barsProcessed.Add(float64(n))
}

// RecordTradeClosed counts a closed order.
func (r *Registry) RecordTradeClosed(reason string) {
	r.tradesClosed.WithLabelValues(reason).Inc()
}

// SetFinalBalance records the final balance of a run.
func (r *Registry) SetFinalBalance(run string, balance float64) {
	r.finalBalance.WithLabelValues(run).Set(balance)
}

// StartSweep resets sweep progress to total pending combinations.
func (r *Registry) StartSweep(total int) {
	r.sweepRemaining.Set(float64(total))
}

// SweepWorkerBusy marks a worker as running (+1) or idle (-1).
func (r *Registry) SweepWorkerBusy(delta int) {
	r.sweepWorkers.Add(float64(delta))
}

// RecordSweepRun records one finished sweep combination.
func (r *Registry) RecordSweepRun(status string) {
	r.sweepRuns.WithLabelValues(status).Inc()
	r.sweepRemaining.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// WriteToTextfile dumps the registry for the node_exporter textfile collector.
func (r *Registry) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
