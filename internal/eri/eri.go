// Package eri computes the Environmental Risk Index and classifies it into a
// risk band.
package eri

import "github.com/shieldai/cetp-monitor/internal/model"

// Thresholds holds the strictly-ascending ERI band boundaries (config
// validation enforces the ordering before this type is ever constructed).
type Thresholds struct {
	Low, Medium, High float64
}

// Scorer computes ERI and classifies risk band for attributed anomalies.
type Scorer struct {
	sensitivity        map[string]float64
	defaultSensitivity float64
	severityMultiplier float64
	thresholds         Thresholds
}

// NewScorer constructs an eri.Scorer from the river_sensitivity table,
// default_sensitivity, severity_multiplier, and the ascending ERI thresholds.
func NewScorer(sensitivity map[string]float64, defaultSensitivity, severityMultiplier float64, thresholds Thresholds) *Scorer {
	return &Scorer{
		sensitivity:        sensitivity,
		defaultSensitivity: defaultSensitivity,
		severityMultiplier: severityMultiplier,
		thresholds:         thresholds,
	}
}

// Score enriches an AttributedAnomaly with discharge-point risk scoring,
// discharge-point risk scoring.
func (s *Scorer) Score(a model.AttributedAnomaly) model.ERIReading {
	dischargePoint := a.GroupName
	sensitivity, known := s.sensitivity[dischargePoint]
	unknown := !known
	if unknown {
		sensitivity = s.defaultSensitivity
	}

	value := a.CompositeScore * sensitivity * s.severityMultiplier
	return model.ERIReading{
		AttributedAnomaly:  a,
		DischargePointID:   dischargePoint,
		SensitivityFactor:  sensitivity,
		UnknownSensitivity: unknown,
		ERI:                value,
		RiskBand:           s.classify(value),
	}
}

// classify walks the ascending threshold list; the first bucket eri fits
// under wins, otherwise CRITICAL.
func (s *Scorer) classify(value float64) model.RiskBand {
	switch {
	case value < s.thresholds.Low:
		return model.RiskLow
	case value < s.thresholds.Medium:
		return model.RiskMedium
	case value < s.thresholds.High:
		return model.RiskHigh
	default:
		return model.RiskCritical
	}
}
