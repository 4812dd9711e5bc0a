// Package anticheat runs three batch detectors over historical factory
// discharge data to flag tampering: frozen sensors, dilution, and strategic
// blackouts. Unlike the streaming stages, these run as tumbling-window
// passes over a factory's full reading history, since the nullable BLACKOUT
// rows they reason about don't fit a purely incremental reducer.
package anticheat

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shieldai/cetp-monitor/internal/model"
)

// TinyEps is the COD range below which a tumbling window is declared
// zero-variance (frozen sensor).
const TinyEps = 1e-4

// Config holds the tunables for all three detectors.
type Config struct {
	ZeroVarianceWindow time.Duration
	DilutionWindow     time.Duration
	CODDropFraction    float64
	TSSStableFraction  float64
	BlackoutWindow     time.Duration
	BlackoutThreshold  float64 // fraction of null rows to trigger, default 0.80
}

// tumble splits sorted readings into consecutive, non-overlapping windows of
// the given duration starting at the first reading's timestamp.
func tumble(readings []model.Reading, window time.Duration) [][]model.Reading {
	if len(readings) == 0 {
		return nil
	}
	var windows [][]model.Reading
	start := readings[0].Timestamp
	end := start.Add(window)
	var cur []model.Reading
	for _, r := range readings {
		for !r.Timestamp.Before(end) {
			if len(cur) > 0 {
				windows = append(windows, cur)
			}
			cur = nil
			start = end
			end = start.Add(window)
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		windows = append(windows, cur)
	}
	return windows
}

func sortedByTime(readings []model.Reading) []model.Reading {
	out := append([]model.Reading(nil), readings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// DetectZeroVariance flags factories reporting a perfectly flat COD reading
// over a tumbling window.
func DetectZeroVariance(factoryID string, readings []model.Reading, window time.Duration) []model.TamperRecord {
	var clean []model.Reading
	for _, r := range readings {
		if r.Value != nil {
			clean = append(clean, r)
		}
	}
	clean = sortedByTime(clean)

	var out []model.TamperRecord
	for _, w := range tumble(clean, window) {
		if len(w) < 2 {
			continue
		}
		min, max := *w[0].Value, *w[0].Value
		for _, r := range w[1:] {
			if *r.Value < min {
				min = *r.Value
			}
			if *r.Value > max {
				max = *r.Value
			}
		}
		codRange := max - min
		if codRange < TinyEps {
			out = append(out, model.TamperRecord{
				RecordID:   uuid.NewString(),
				TamperType: model.TamperZeroVariance,
				FactoryID:  factoryID,
				WindowEnd:  w[len(w)-1].Timestamp,
				Fields: map[string]interface{}{
					"cod_max":   round(max, 4),
					"cod_min":   round(min, 4),
					"cod_range": round(codRange, 6),
					"row_count": len(w),
				},
			})
		}
	}
	return out
}

// DetectDilution flags dilution tampering: COD drops sharply while TSS
// stays stable across consecutive tumbling windows.
func DetectDilution(factoryID string, readings []model.Reading, window time.Duration, codDrop, tssStable float64) []model.TamperRecord {
	var clean []model.Reading
	for _, r := range readings {
		if r.Value != nil && r.TSS != nil {
			clean = append(clean, r)
		}
	}
	clean = sortedByTime(clean)
	if len(clean) < 6 {
		return nil
	}

	var out []model.TamperRecord
	var prevCOD, prevTSS float64
	havePrev := false
	for _, w := range tumble(clean, window) {
		if len(w) < 3 {
			continue
		}
		var codSum, tssSum float64
		for _, r := range w {
			codSum += *r.Value
			tssSum += *r.TSS
		}
		meanCOD := codSum / float64(len(w))
		meanTSS := tssSum / float64(len(w))

		if havePrev {
			codThreshold := prevCOD * (1.0 - codDrop)
			tssThreshold := prevTSS * (1.0 - tssStable)
			if meanCOD <= codThreshold && meanTSS >= tssThreshold {
				out = append(out, model.TamperRecord{
					RecordID:   uuid.NewString(),
					TamperType: model.TamperDilution,
					FactoryID:  factoryID,
					WindowEnd:  w[len(w)-1].Timestamp,
					Fields: map[string]interface{}{
						"mean_cod":     round(meanCOD, 2),
						"mean_tss":     round(meanTSS, 2),
						"baseline_cod": round(prevCOD, 2),
						"baseline_tss": round(prevTSS, 2),
					},
				})
			}
		}
		prevCOD, prevTSS, havePrev = meanCOD, meanTSS, true
	}
	return out
}

// DetectBlackout flags windows where the fraction of null-cod rows meets or
// exceeds the blackout threshold.
func DetectBlackout(factoryID string, readings []model.Reading, window time.Duration, threshold float64, minRows int) []model.TamperRecord {
	all := sortedByTime(readings)

	var out []model.TamperRecord
	for _, w := range tumble(all, window) {
		if len(w) < minRows {
			continue
		}
		total := len(w)
		var blackoutRows int
		for _, r := range w {
			if r.Value == nil {
				blackoutRows++
			}
		}
		ratio := float64(blackoutRows) / float64(total)
		if ratio >= threshold {
			out = append(out, model.TamperRecord{
				RecordID:   uuid.NewString(),
				TamperType: model.TamperBlackout,
				FactoryID:  factoryID,
				WindowEnd:  w[len(w)-1].Timestamp,
				Fields: map[string]interface{}{
					"total_rows":      total,
					"blackout_rows":   blackoutRows,
					"blackout_ratio":  round(ratio, 3),
				},
			})
		}
	}
	return out
}

// RunAll runs all three detectors over every factory's full reading stream
// and returns the combined, window_end-sorted result.
func RunAll(byFactory map[string][]model.Reading, cfg Config) []model.TamperRecord {
	var all []model.TamperRecord
	factoryIDs := make([]string, 0, len(byFactory))
	for id := range byFactory {
		factoryIDs = append(factoryIDs, id)
	}
	sort.Strings(factoryIDs)

	blackoutMinRows := int(cfg.BlackoutWindow.Minutes())
	threshold := cfg.BlackoutThreshold
	if threshold == 0 {
		threshold = 0.80
	}

	for _, id := range factoryIDs {
		readings := byFactory[id]
		all = append(all, DetectZeroVariance(id, readings, cfg.ZeroVarianceWindow)...)
		all = append(all, DetectDilution(id, readings, cfg.DilutionWindow, cfg.CODDropFraction, cfg.TSSStableFraction)...)
		all = append(all, DetectBlackout(id, readings, cfg.BlackoutWindow, threshold, blackoutMinRows)...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].WindowEnd.Before(all[j].WindowEnd) })
	return all
}

func round(f float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(f*mult) / mult
}
