// Package score joins readings to their sensor's latest window statistics
// and computes a z-score anomaly flag.
package score

import (
	"github.com/shieldai/cetp-monitor/internal/model"
	"github.com/shieldai/cetp-monitor/internal/stats"
)

// Scorer holds the most recent WindowStats per sensor and scores readings
// against it. Strictly `>` on the threshold comparison — equality is never
// anomalous (never `>=
// docstrings being wrong).
type Scorer struct {
	threshold float64
	latest    map[string]model.WindowStats
}

// NewScorer constructs a Scorer for the given ZSCORE_THRESHOLD.
func NewScorer(threshold float64) *Scorer {
	return &Scorer{threshold: threshold, latest: make(map[string]model.WindowStats)}
}

// Observe records a freshly emitted WindowStats row as the current baseline
// for its sensor.
func (s *Scorer) Observe(ws model.WindowStats) {
	s.latest[ws.SensorID] = ws
}

// Score joins a reading with its sensor's latest window. Returns ok=false
// when no window has been observed yet for this sensor ("missing
// window match ... the reading is skipped for scoring").
func (s *Scorer) Score(r model.Reading) (model.ScoredReading, bool) {
	if r.Value == nil {
		return model.ScoredReading{}, false
	}
	ws, ok := s.latest[r.SensorID]
	if !ok {
		return model.ScoredReading{}, false
	}

	z := (*r.Value - ws.Mean) / (ws.Std + stats.Epsilon)
	return model.ScoredReading{
		SensorID:    r.SensorID,
		Timestamp:   r.Timestamp,
		Value:       *r.Value,
		RollingMean: ws.Mean,
		RollingStd:  ws.Std,
		ZScore:      z,
		IsAnomaly:   abs(z) > s.threshold,
	}, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
