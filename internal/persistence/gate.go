// Package persistence gates z-score anomalies behind a per-sensor
// consecutive-streak counter so single-sample noise never reaches the
// multivariate aggregator.
package persistence

import "go.uber.org/zap"

// Gate maintains counter[sensor_id] -> non-negative int (it keeps counting
// past K while the streak lasts), forwarding only readings whose streak has
// reached PERSISTENCE_COUNT.
type Gate struct {
	k        int
	counters map[string]int
	log      *zap.Logger
}

// NewGate constructs a Gate for the given PERSISTENCE_COUNT.
func NewGate(k int, log *zap.Logger) *Gate {
	return &Gate{k: k, counters: make(map[string]int), log: log}
}

// Observe advances sensorID's counter for one scored reading and reports
// whether this reading is now confirmed (counter reached k). The reset
// transition is logged at DEBUG.
func (g *Gate) Observe(sensorID string, isAnomaly bool) (confirmed bool) {
	if isAnomaly {
		g.counters[sensorID]++
		return g.counters[sensorID] >= g.k
	}

	if prev := g.counters[sensorID]; prev > 0 {
		if g.log != nil {
			g.log.Debug("persistence counter reset",
				zap.String("sensor_id", sensorID),
				zap.Int("from", prev),
				zap.Int("to", 0),
			)
		}
		g.counters[sensorID] = 0
	}
	return false
}

// Counter returns the current streak for a sensor, for tests and metrics.
func (g *Gate) Counter(sensorID string) int {
	return g.counters[sensorID]
}
