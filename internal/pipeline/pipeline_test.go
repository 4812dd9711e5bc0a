package pipeline

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shieldai/cetp-monitor/internal/backtrack"
	"github.com/shieldai/cetp-monitor/internal/config"
	"github.com/shieldai/cetp-monitor/internal/model"
	"github.com/shieldai/cetp-monitor/internal/sink"
)

func testConfig() *config.Config {
	return &config.Config{
		WindowDurationMS:         10 * 60 * 1000,
		WindowHopMS:              60 * 1000,
		ZScoreThreshold:          2.0,
		PersistenceCount:         1,
		SensorGroups:             map[string][]string{"discharge_point_A": {"pH", "turbidity", "flow"}},
		GroupThreshold:           1.0,
		SyncToleranceMS:          1000,
		CODThreshold:             250.0,
		CODBaseline:              193.0,
		PipeTravelMinutes:        15,
		AsofToleranceSeconds:     120,
		RiverSensitivity:         map[string]float64{"discharge_point_A": 2.0},
		DefaultSensitivity:       1.0,
		SeverityMultiplier:       1.0,
		ERIThresholdLow:          2.0,
		ERIThresholdMedium:       5.0,
		ERIThresholdHigh:         10.0,
		AlertMinRiskBand:         "MEDIUM",
		AlertCooldownSeconds:     0,
		ZeroVarianceMinutes:      5,
		DilutionWindowMinutes:    60,
		CODDropFraction:          0.8,
		TSSStableFraction:        0.2,
		BlackoutMinMinutes:       30,
		MetricsIntervalSeconds:   30,
		MetricsRateWindowSeconds: 60,
	}
}

func v(f float64) *float64 { return &f }

func TestProcessFactoryEmitsAlertOnGroupAnomaly(t *testing.T) {
	cfg := testConfig()
	p := New(cfg, zap.NewNop(), nil, Sinks{})

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Seed a stable baseline window for each sensor in the group so later
	// spikes register as z-score anomalies.
	var seed []model.Reading
	for i := 0; i < 12; i++ {
		t0 := base.Add(time.Duration(i) * 10 * time.Second)
		seed = append(seed,
			model.Reading{SensorID: "pH", Timestamp: t0, Value: v(7.0)},
			model.Reading{SensorID: "turbidity", Timestamp: t0, Value: v(5.0)},
			model.Reading{SensorID: "flow", Timestamp: t0, Value: v(100.0)},
		)
	}
	if err := p.ProcessFactory(seed); err != nil {
		t.Fatalf("seed ProcessFactory: %v", err)
	}

	spikeTime := base.Add(11 * time.Minute)
	spikes := []model.Reading{
		{SensorID: "pH", Timestamp: spikeTime, Value: v(2.0)},
		{SensorID: "turbidity", Timestamp: spikeTime.Add(time.Millisecond), Value: v(50.0)},
		{SensorID: "flow", Timestamp: spikeTime.Add(2 * time.Millisecond), Value: v(500.0)},
	}
	if err := p.ProcessFactory(spikes); err != nil {
		t.Fatalf("spike ProcessFactory: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	snap := p.aggregator.Snapshot(spikeTime)
	if snap.AnomaliesDetectedTotal == 0 {
		t.Fatalf("expected at least one recorded anomaly, got 0")
	}
	if snap.ActiveAlertsCount != 1 {
		t.Fatalf("alerts = %d, want 1 routed alert for the group anomaly", snap.ActiveAlertsCount)
	}
}

func TestProcessCETPWithoutIndexStillWritesEvidence(t *testing.T) {
	cfg := testConfig()
	evidencePath := t.TempDir() + "/evidence.jsonl"
	evidence := sink.NewJSONLWriter(evidencePath)
	defer evidence.Close()
	p := New(cfg, zap.NewNop(), nil, Sinks{Evidence: evidence})

	readings := []model.Reading{
		{Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), Value: v(180)},
		{Timestamp: time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC), Value: v(260)},
	}
	if err := p.ProcessCETP(readings); err != nil {
		t.Fatalf("ProcessCETP: %v", err)
	}

	snap := p.aggregator.Snapshot(time.Date(2026, 1, 1, 12, 6, 0, 0, time.UTC))
	if snap.EventsProcessedTotal != 2 {
		t.Fatalf("events = %d, want 2", snap.EventsProcessedTotal)
	}
	if snap.AnomaliesDetectedTotal != 1 {
		t.Fatalf("anomalies = %d, want 1 (only the 260 cod reading breaches)", snap.AnomaliesDetectedTotal)
	}

	data, err := os.ReadFile(evidencePath)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
		t.Fatalf("evidence lines = %d, want 1 (one record for the 260 cod breach)", len(lines))
	}
}

func TestProcessCETPWithIndexAttributesFactory(t *testing.T) {
	cfg := testConfig()
	dbPath := t.TempDir() + "/factory_index.db"
	idx, err := backtrack.BuildIndex(dbPath, []model.FactoryRow{
		{FactoryID: "FACTORY_B", Time: time.Date(2026, 1, 1, 12, 8, 0, 0, time.UTC), COD: 450, BOD: v(200), TSS: v(80)},
	})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	defer idx.Close()

	evidencePath := t.TempDir() + "/evidence.jsonl"
	evidence := sink.NewJSONLWriter(evidencePath)
	defer evidence.Close()
	p := New(cfg, zap.NewNop(), idx, Sinks{Evidence: evidence})
	readings := []model.Reading{
		{Timestamp: time.Date(2026, 1, 1, 12, 23, 0, 0, time.UTC), Value: v(300)},
	}
	if err := p.ProcessCETP(readings); err != nil {
		t.Fatalf("ProcessCETP: %v", err)
	}
	snap := p.aggregator.Snapshot(time.Date(2026, 1, 1, 12, 24, 0, 0, time.UTC))
	if snap.AnomaliesDetectedTotal != 1 {
		t.Fatalf("anomalies = %d, want 1", snap.AnomaliesDetectedTotal)
	}

	data, err := os.ReadFile(evidencePath)
	if err != nil {
		t.Fatalf("read evidence: %v", err)
	}
	var rec model.EvidenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("evidence line is not a single EvidenceRecord: %v", err)
	}
	if rec.AttributedFactory == nil || *rec.AttributedFactory != "FACTORY_B" {
		t.Fatalf("attributed_factory = %v, want FACTORY_B", rec.AttributedFactory)
	}
}
