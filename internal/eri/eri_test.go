package eri

import (
	"testing"

	"github.com/shieldai/cetp-monitor/internal/model"
)

func scorer() *Scorer {
	return NewScorer(
		map[string]float64{"known_point": 3.0},
		1.0, 1.0,
		Thresholds{Low: 2.0, Medium: 5.0, High: 10.0},
	)
}

func TestClassifyIsMonotone(t *testing.T) {
	s := scorer()
	values := []float64{0.5, 1.9, 2.0, 4.9, 5.0, 9.9, 10.0, 50.0}
	prevRank := -1
	for _, v := range values {
		band := s.classify(v)
		rank := model.RiskBandRank(band)
		if rank < prevRank {
			t.Fatalf("classify(%v) = %v (rank %d) is less than previous rank %d; must be monotone", v, band, rank, prevRank)
		}
		prevRank = rank
	}
}

func TestUnknownSensitivityUsesDefault(t *testing.T) {
	s := scorer()
	out := s.Score(model.AttributedAnomaly{GroupWindow: model.GroupWindow{GroupName: "mystery_point", CompositeScore: 1.0}})
	if !out.UnknownSensitivity {
		t.Fatal("expected unknown_sensitivity=true for an unconfigured discharge point")
	}
	if out.SensitivityFactor != 1.0 {
		t.Fatalf("sensitivity_factor = %v, want default 1.0", out.SensitivityFactor)
	}
}

func TestKnownSensitivityAndERIFormula(t *testing.T) {
	s := scorer()
	out := s.Score(model.AttributedAnomaly{GroupWindow: model.GroupWindow{GroupName: "known_point", CompositeScore: 2.0}})
	if out.UnknownSensitivity {
		t.Fatal("expected unknown_sensitivity=false for a configured discharge point")
	}
	want := 2.0 * 3.0 * 1.0
	if out.ERI != want {
		t.Fatalf("eri = %v, want %v", out.ERI, want)
	}
	if out.RiskBand != model.RiskHigh {
		t.Fatalf("risk_band = %v, want HIGH for eri=%v", out.RiskBand, want)
	}
}
