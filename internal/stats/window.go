// Package stats computes incremental sliding-window statistics per sensor.
package stats

import (
	"math"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

// Epsilon floors standard deviation so downstream division never blows up.
const Epsilon = 1e-6

type entry struct {
	t time.Time
	v float64
}

// Window maintains one sensor's running aggregate over a hopping window of
// WindowDuration, emitting a WindowStats row every WindowHop. Running sum and
// sum-of-squares are maintained incrementally via the identity
// Var = E[X^2] - E[X]^2 so arriving/expiring readings cost O(1) amortized
// work instead of a full rescan; min/max are recomputed over the (bounded)
// surviving window contents at each emission.
type Window struct {
	sensorID string
	duration time.Duration
	hop      time.Duration

	entries []entry
	sum     float64
	sumSq   float64

	initialized bool
	windowEnd   time.Time
}

// NewWindow constructs the per-sensor incremental aggregator.
func NewWindow(sensorID string, duration, hop time.Duration) *Window {
	return &Window{sensorID: sensorID, duration: duration, hop: hop}
}

// Process admits one reading and returns zero or more WindowStats rows for
// every hop boundary the reading's timestamp has now caused to close.
func (w *Window) Process(t time.Time, v float64) []model.WindowStats {
	if !w.initialized {
		w.windowEnd = t.Add(w.hop)
		w.initialized = true
	}

	var out []model.WindowStats
	for !t.Before(w.windowEnd) {
		windowStart := w.windowEnd.Add(-w.duration)
		w.evictBefore(windowStart)

		if len(w.entries) > 0 {
			out = append(out, w.snapshot(windowStart, w.windowEnd))
		}
		w.windowEnd = w.windowEnd.Add(w.hop)
	}

	w.entries = append(w.entries, entry{t: t, v: v})
	w.sum += v
	w.sumSq += v * v
	return out
}

// Flush emits a final window over whatever remains buffered, called when the
// source closes.
func (w *Window) Flush() []model.WindowStats {
	if len(w.entries) == 0 {
		return nil
	}
	windowStart := w.entries[0].t
	return []model.WindowStats{w.snapshot(windowStart, w.windowEnd)}
}

func (w *Window) evictBefore(cutoff time.Time) {
	i := 0
	for i < len(w.entries) && w.entries[i].t.Before(cutoff) {
		w.sum -= w.entries[i].v
		w.sumSq -= w.entries[i].v * w.entries[i].v
		i++
	}
	w.entries = w.entries[i:]
}

func (w *Window) snapshot(start, end time.Time) model.WindowStats {
	n := len(w.entries)
	mean := w.sum / float64(n)
	variance := w.sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	if std < Epsilon {
		std = Epsilon
	}

	min, max := w.entries[0].v, w.entries[0].v
	for _, e := range w.entries[1:] {
		if e.v < min {
			min = e.v
		}
		if e.v > max {
			max = e.v
		}
	}

	return model.WindowStats{
		SensorID:    w.sensorID,
		WindowStart: start,
		WindowEnd:   end,
		Mean:        mean,
		Std:         std,
		Min:         min,
		Max:         max,
		SampleCount: n,
	}
}
