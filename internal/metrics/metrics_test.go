package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_RuntimeMetrics(t *testing.T) {
	reg := NewRegistry()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func find(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("success", 0.25)
	reg.RecordBacktest("success", 0.5)
	reg.RecordBacktest("error", 0.01)

	mf := find(t, reg, "boxsim_backtests_total")
	if mf == nil {
		t.Fatal("expected boxsim_backtests_total metric")
	}
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "status")] = m.GetCounter().GetValue()
	}
	if counts["success"] != 2 || counts["error"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	hist := find(t, reg, "boxsim_backtest_duration_seconds")
	if hist == nil {
		t.Fatal("expected boxsim_backtest_duration_seconds metric")
	}
	h := hist.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("expected sample count 3, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.75 || h.GetSampleSum() > 0.77 {
		t.Errorf("expected sample sum ~0.76, got %v", h.GetSampleSum())
	}
}

func TestRegistry_BarsAndTrades(t *testing.T) {
	reg := NewRegistry()

	reg.AddBars(100)
	reg.AddBars(20)
	reg.RecordTradeClosed("TP")
	reg.RecordTradeClosed("TP")
	reg.RecordTradeClosed("DailyTarget")

	bars := find(t, reg, "boxsim_bars_processed_total")
	if bars == nil {
		t.Fatal("expected boxsim_bars_processed_total metric")
	}
	if got := bars.GetMetric()[0].GetCounter().GetValue(); got != 120 {
		t.Errorf("expected 120 bars, got %v", got)
	}

	trades := find(t, reg, "boxsim_trades_closed_total")
	if trades == nil {
		t.Fatal("expected boxsim_trades_closed_total metric")
	}
	for _, m := range trades.GetMetric() {
		want := map[string]float64{"TP": 2, "DailyTarget": 1}[labelValue(m, "reason")]
		if m.GetCounter().GetValue() != want {
			t.Errorf("reason %s: expected %v, got %v", labelValue(m, "reason"), want, m.GetCounter().GetValue())
		}
	}
}

func TestRegistry_SweepProgress(t *testing.T) {
	reg := NewRegistry()

	reg.StartSweep(4)
	reg.SweepWorkerBusy(1)
	reg.SweepWorkerBusy(1)
	reg.RecordSweepRun("success")
	reg.SweepWorkerBusy(-1)
	reg.RecordSweepRun("error")

	remaining := find(t, reg, "boxsim_sweep_remaining")
	if remaining == nil {
		t.Fatal("expected boxsim_sweep_remaining metric")
	}
	if got := remaining.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("expected 2 remaining, got %v", got)
	}

	busy := find(t, reg, "boxsim_sweep_workers_busy")
	if got := busy.GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("expected 1 busy worker, got %v", got)
	}
}

func TestRegistry_FinalBalance(t *testing.T) {
	reg := NewRegistry()
	reg.SetFinalBalance("baseline", 101500)
	reg.SetFinalBalance("baseline", 102000)

	mf := find(t, reg, "boxsim_final_balance")
	if mf == nil {
		t.Fatal("expected boxsim_final_balance metric")
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 102000 {
		t.Errorf("expected last value to win, got %v", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("success", 0.1)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `boxsim_backtests_total{status="success"} 1`) {
		t.Errorf("expected backtest counter in body, got:\n%s", rec.Body.String())
	}
}

func TestRegistry_WriteToTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.AddBars(7)

	path := filepath.Join(t.TempDir(), "boxsim.prom")
	if err := reg.WriteToTextfile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(raw), "boxsim_bars_processed_total 7") {
		t.Errorf("expected bar counter in textfile, got:\n%s", raw)
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}
