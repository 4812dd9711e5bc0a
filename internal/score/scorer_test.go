package score

import (
	"testing"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

func TestScoreExactFormulaAndThreshold(t *testing.T) {
	s := NewScorer(3.0)
	s.Observe(model.WindowStats{SensorID: "cod", Mean: 100, Std: 10})

	v := 135.0
	r := model.Reading{SensorID: "cod", Timestamp: time.Now(), Value: &v}
	scored, ok := s.Score(r)
	if !ok {
		t.Fatal("expected a score")
	}
	wantZ := (135.0 - 100.0) / (10.0 + 1e-6)
	if scored.ZScore != wantZ {
		t.Fatalf("z_score = %v, want %v", scored.ZScore, wantZ)
	}
	if !scored.IsAnomaly {
		t.Fatal("expected is_anomaly true for z > threshold")
	}
}

func TestScoreStrictlyGreaterThan(t *testing.T) {
	s := NewScorer(3.0)
	// std + epsilon is exactly 10.0, so z = (130 - 100) / 10 is exactly 3.0.
	s.Observe(model.WindowStats{SensorID: "cod", Mean: 100, Std: 10.0 - 1e-6})

	v := 130.0 // z exactly == threshold
	r := model.Reading{SensorID: "cod", Timestamp: time.Now(), Value: &v}
	scored, ok := s.Score(r)
	if !ok {
		t.Fatal("expected a score")
	}
	if scored.IsAnomaly {
		t.Fatal("z == threshold must not be anomalous; comparison is strict >")
	}
}

func TestScoreSkipsWithoutWindow(t *testing.T) {
	s := NewScorer(3.0)
	v := 10.0
	r := model.Reading{SensorID: "unseen", Timestamp: time.Now(), Value: &v}
	if _, ok := s.Score(r); ok {
		t.Fatal("expected no score for a sensor with no observed window")
	}
}
