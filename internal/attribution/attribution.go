// Package attribution formats a closed GroupWindow into sensor-level causal
// attribution: who drove the anomaly, and by how much.
package attribution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/shieldai/cetp-monitor/internal/model"
)

// Format enriches a GroupWindow with top_contributor, attribution_detail,
// and alert_message. The input is not mutated.
func Format(win model.GroupWindow) model.AttributedAnomaly {
	fractions := computeFractions(win.SensorZScores, win.Contributing)
	sorted := sortDescending(fractions)

	topID, topFrac := topContributor(sorted)
	return model.AttributedAnomaly{
		GroupWindow:       win,
		TopContributor:    topID,
		AttributionDetail: formatDetail(sorted),
		AlertMessage:      formatMessage(win.GroupName, topID, topFrac),
	}
}

// computeFractions returns fraction_i = z_i^2 / sum(z_j^2) for contributing
// sensors, distributing equally when the total is zero.
func computeFractions(zScores map[string]float64, contributing []string) map[string]float64 {
	sq := make(map[string]float64, len(contributing))
	var total float64
	for _, id := range contributing {
		z := zScores[id]
		sq[id] = z * z
		total += sq[id]
	}
	fractions := make(map[string]float64, len(contributing))
	if total == 0 {
		n := len(contributing)
		for _, id := range contributing {
			if n > 0 {
				fractions[id] = 1.0 / float64(n)
			}
		}
		return fractions
	}
	for _, id := range contributing {
		fractions[id] = sq[id] / total
	}
	return fractions
}

type pair struct {
	id       string
	fraction float64
}

func sortDescending(fractions map[string]float64) []pair {
	pairs := make([]pair, 0, len(fractions))
	for id, f := range fractions {
		pairs = append(pairs, pair{id, f})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].fraction > pairs[j].fraction })
	return pairs
}

func topContributor(sorted []pair) (string, float64) {
	if len(sorted) == 0 {
		return "", 0
	}
	return sorted[0].id, sorted[0].fraction
}

// formatDetail serializes fractions rounded to 3dp as compact JSON,
// preserving descending order (Go map iteration order is not preserved by
// json.Marshal, so this builds the object manually like a sorted-struct slice).
func formatDetail(sorted []pair) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range sorted {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(p.id)
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(formatFraction(round(p.fraction, 3)))
	}
	buf.WriteByte('}')
	return buf.String()
}

func round(f float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(f*mult) / mult
}

func formatFraction(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.1f", f)
	}
	return fmt.Sprintf("%g", f)
}

func formatMessage(group, topID string, topFrac float64) string {
	return fmt.Sprintf("Anomaly in %s: primary driver %s (%.0f%% of score)", group, topID, topFrac*100)
}
