package backtrack

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shieldai/cetp-monitor/internal/model"
)

// Engine backtracks a CETP shock time by the
// fixed pipe travel time and attribute the shock to the highest-COD factory
// row observed in the tolerance window around that time.
type Engine struct {
	index               *FactoryIndex
	pipeTravel          time.Duration
	tolerance           time.Duration
}

// NewEngine constructs a backtrack Engine. pipeTravel is the fixed pipe
// travel delay subtracted from every shock time; the anti-cheat detectors
// do not take or use this value.
func NewEngine(index *FactoryIndex, pipeTravel, tolerance time.Duration) *Engine {
	return &Engine{index: index, pipeTravel: pipeTravel, tolerance: tolerance}
}

// Attribute runs the five-step backtrack algorithm for one CETP shock and
// returns the EvidenceRecord to append to the evidence sink.
func (e *Engine) Attribute(shockTime time.Time, cod, breachMag float64, alertLevel string) model.EvidenceRecord {
	backtrackTime := shockTime.Add(-e.pipeTravel)
	windowStart := backtrackTime.Add(-e.tolerance)
	windowEnd := backtrackTime.Add(e.tolerance)

	candidates := e.index.InWindow(windowStart, windowEnd)
	rec := model.EvidenceRecord{
		RecordID:      uuid.NewString(),
		CETPEventTime: shockTime,
		CETPCOD:       round2(cod),
		BreachMag:     round2(breachMag),
		AlertLevel:    alertLevel,
		BacktrackTime: backtrackTime,
	}

	best, ok := pickBest(candidates)
	if !ok {
		return rec
	}

	factoryID := best.FactoryID
	factoryCOD := round2(best.COD)
	rec.AttributedFactory = &factoryID
	rec.FactoryCOD = &factoryCOD
	rec.FactoryBOD = roundPtr(best.BOD)
	rec.FactoryTSS = roundPtr(best.TSS)
	return rec
}

// pickBest selects the maximum-COD row, tie-broken by latest timestamp then
// by lexicographically smallest factory_id.
func pickBest(rows []model.FactoryRow) (model.FactoryRow, bool) {
	if len(rows) == 0 {
		return model.FactoryRow{}, false
	}
	sorted := append([]model.FactoryRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.COD != b.COD {
			return a.COD > b.COD
		}
		if !a.Time.Equal(b.Time) {
			return a.Time.After(b.Time)
		}
		return a.FactoryID < b.FactoryID
	})
	return sorted[0], true
}

func round2(f float64) float64 {
	return float64(int64(f*100+sign(f)*0.5)) / 100
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

func roundPtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := round2(*f)
	return &v
}
