package metrics

import (
	"sync"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

// riskRank orders risk bands for computing the highest observed band.
var riskRank = map[model.RiskBand]int{
	model.RiskLow: 0, model.RiskMedium: 1, model.RiskHigh: 2, model.RiskCritical: 3,
}

// Snapshot is the atomic JSON document written to the metrics sink,
// the metrics sink.
type Snapshot struct {
	EventsProcessedTotal   int64     `json:"events_processed_total"`
	AnomaliesDetectedTotal int64     `json:"anomalies_detected_total"`
	ActiveAlertsCount      int64     `json:"active_alerts_count"`
	AvgERILast5Min         float64   `json:"avg_eri_last_5min"`
	HighestRiskBand        string    `json:"highest_risk_band"`
	PipelineUptimeSeconds  float64   `json:"pipeline_uptime_seconds"`
	LastEventTimestamp     time.Time `json:"last_event_timestamp"`
}

// Aggregator accumulates pipeline-wide counters for the metrics snapshot.
type Aggregator struct {
	mu sync.Mutex

	startedAt          time.Time
	eventsProcessed    int64
	anomaliesDetected  int64
	activeAlerts       int64
	lastEventTimestamp time.Time
	highestRiskBand    model.RiskBand

	eriWindow    []eriSample
	eriWindowDur time.Duration
}

type eriSample struct {
	at  time.Time
	eri float64
}

// NewAggregator constructs an Aggregator starting its uptime clock at now.
func NewAggregator(now time.Time) *Aggregator {
	return &Aggregator{startedAt: now, eriWindowDur: 5 * time.Minute}
}

// RecordEvent counts one processed reading.
func (a *Aggregator) RecordEvent(ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventsProcessed++
	if ts.After(a.lastEventTimestamp) {
		a.lastEventTimestamp = ts
	}
}

// RecordAnomaly counts one confirmed anomaly and its ERI reading, tracking
// the rolling 5-minute average ERI and the highest risk band observed.
func (a *Aggregator) RecordAnomaly(now time.Time, eri model.ERIReading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.anomaliesDetected++
	if riskRank[eri.RiskBand] > riskRank[a.highestRiskBand] {
		a.highestRiskBand = eri.RiskBand
	}

	a.eriWindow = append(a.eriWindow, eriSample{at: now, eri: eri.ERI})
	cutoff := now.Add(-a.eriWindowDur)
	i := 0
	for i < len(a.eriWindow) && a.eriWindow[i].at.Before(cutoff) {
		i++
	}
	a.eriWindow = a.eriWindow[i:]
}

// RecordAlert increments the active-alerts counter.
func (a *Aggregator) RecordAlert() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeAlerts++
}

// Snapshot computes the current Snapshot from accumulated counters.
func (a *Aggregator) Snapshot(now time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	var avgERI float64
	cutoff := now.Add(-a.eriWindowDur)
	var sum float64
	var n int
	for _, s := range a.eriWindow {
		if s.at.Before(cutoff) {
			continue
		}
		sum += s.eri
		n++
	}
	if n > 0 {
		avgERI = sum / float64(n)
	}

	band := a.highestRiskBand
	if band == "" {
		band = model.RiskLow
	}

	return Snapshot{
		EventsProcessedTotal:   a.eventsProcessed,
		AnomaliesDetectedTotal: a.anomaliesDetected,
		ActiveAlertsCount:      a.activeAlerts,
		AvgERILast5Min:         avgERI,
		HighestRiskBand:        string(band),
		PipelineUptimeSeconds:  now.Sub(a.startedAt).Seconds(),
		LastEventTimestamp:     a.lastEventTimestamp,
	}
}
