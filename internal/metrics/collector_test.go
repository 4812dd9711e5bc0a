package metrics

import (
	"testing"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
	"go.uber.org/zap"
)

func TestComputePercentileLinearInterpolation(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := ComputePercentile(data, 50); got != 5.5 {
		t.Fatalf("p50 = %v, want 5.5", got)
	}
	if got := ComputePercentile(data, 0); got != 1 {
		t.Fatalf("p0 = %v, want 1", got)
	}
	if got := ComputePercentile(data, 100); got != 10 {
		t.Fatalf("p100 = %v, want 10", got)
	}
}

func TestComputePercentileEdgeCases(t *testing.T) {
	if got := ComputePercentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v, want 0", got)
	}
	if got := ComputePercentile([]float64{42}, 99); got != 42 {
		t.Fatalf("single = %v, want 42", got)
	}
}

func TestLatencyCollectorTrimsToMaxLen(t *testing.T) {
	c := NewLatencyCollector()
	c.maxLen = 3
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c.Record(float64(i), base.Add(time.Duration(i)*time.Second))
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if c.latencies[0] != 2 {
		t.Fatalf("oldest retained = %v, want 2 (values 0,1 evicted)", c.latencies[0])
	}
}

func TestLatencyCollectorAlertsPerMin(t *testing.T) {
	c := NewLatencyCollector()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		c.Record(10.0, base.Add(time.Duration(i)*10*time.Second))
	}
	rate := c.AlertsPerMin(base.Add(60*time.Second), 60*time.Second)
	if rate <= 0 {
		t.Fatalf("rate = %v, want > 0", rate)
	}
}

func TestReporterSkipsUntilIntervalElapsed(t *testing.T) {
	c := NewLatencyCollector()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Record(5.0, base)
	r := NewReporter(c, 30*time.Second, 60*time.Second, zap.NewNop())

	if !r.MaybeReport(base) {
		t.Fatalf("first report should fire")
	}
	if r.MaybeReport(base.Add(5 * time.Second)) {
		t.Fatalf("report before interval elapsed should not fire")
	}
	if !r.MaybeReport(base.Add(31 * time.Second)) {
		t.Fatalf("report after interval elapsed should fire")
	}
}

func TestReporterSkipsEmptyCollector(t *testing.T) {
	c := NewLatencyCollector()
	r := NewReporter(c, time.Second, time.Minute, zap.NewNop())
	if r.MaybeReport(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("report on empty collector should not fire")
	}
}

func TestAggregatorSnapshotTracksHighestRiskBand(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAggregator(base)

	a.RecordEvent(base)
	a.RecordAnomaly(base.Add(time.Minute), model.ERIReading{ERI: 3.0, RiskBand: model.RiskMedium})
	a.RecordAnomaly(base.Add(2*time.Minute), model.ERIReading{ERI: 9.0, RiskBand: model.RiskHigh})
	a.RecordAnomaly(base.Add(3*time.Minute), model.ERIReading{ERI: 1.0, RiskBand: model.RiskLow})
	a.RecordAlert()

	snap := a.Snapshot(base.Add(4 * time.Minute))
	if snap.HighestRiskBand != string(model.RiskHigh) {
		t.Fatalf("highest risk band = %s, want HIGH", snap.HighestRiskBand)
	}
	if snap.EventsProcessedTotal != 1 {
		t.Fatalf("events = %d, want 1", snap.EventsProcessedTotal)
	}
	if snap.AnomaliesDetectedTotal != 3 {
		t.Fatalf("anomalies = %d, want 3", snap.AnomaliesDetectedTotal)
	}
	if snap.ActiveAlertsCount != 1 {
		t.Fatalf("alerts = %d, want 1", snap.ActiveAlertsCount)
	}
	wantAvg := (3.0 + 9.0 + 1.0) / 3.0
	if snap.AvgERILast5Min != wantAvg {
		t.Fatalf("avg eri = %v, want %v", snap.AvgERILast5Min, wantAvg)
	}
}

func TestAggregatorEvictsStaleERISamples(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAggregator(base)

	a.RecordAnomaly(base, model.ERIReading{ERI: 100.0, RiskBand: model.RiskCritical})
	snap := a.Snapshot(base.Add(10 * time.Minute))
	if snap.AvgERILast5Min != 0 {
		t.Fatalf("avg eri after window expiry = %v, want 0", snap.AvgERILast5Min)
	}
}

func TestAggregatorSnapshotDefaultsToLowBand(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAggregator(base)
	snap := a.Snapshot(base)
	if snap.HighestRiskBand != string(model.RiskLow) {
		t.Fatalf("default band = %s, want LOW", snap.HighestRiskBand)
	}
}
