// Package multivariate accumulates confirmed per-sensor anomalies into
// per-group sync windows and computes their RMS composite score.
package multivariate

import (
	"math"
	"sort"
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

type openWindow struct {
	bucket time.Time
	win    model.GroupWindow
}

// Aggregator maintains a bitmask-based sync window per
// (group_name, time_bucket), emitting one GroupWindow when the bitmask
// completes or the bucket closes.
type Aggregator struct {
	groupThreshold  float64
	syncTolerance   time.Duration
	members         map[string][]string       // group -> ordered sensor_ids
	sensorIndex     map[string]map[string]int // group -> sensor_id -> bit index
	open            map[string]*openWindow    // group -> currently accumulating bucket
}

// NewAggregator constructs a group Aggregator from the configured
// sensor_groups table, group_threshold, and sync_tolerance_ms.
func NewAggregator(groups map[string][]string, groupThreshold float64, syncTolerance time.Duration) *Aggregator {
	a := &Aggregator{
		groupThreshold: groupThreshold,
		syncTolerance:  syncTolerance,
		members:        make(map[string][]string),
		sensorIndex:    make(map[string]map[string]int),
		open:           make(map[string]*openWindow),
	}
	for name, ids := range groups {
		ordered := append([]string(nil), ids...)
		a.members[name] = ordered
		idx := make(map[string]int, len(ordered))
		for i, id := range ordered {
			idx[id] = i
		}
		a.sensorIndex[name] = idx
	}
	return a
}

// GroupsFor returns every group name that contains sensorID.
func (a *Aggregator) GroupsFor(sensorID string) []string {
	var groups []string
	for name, idx := range a.sensorIndex {
		if _, ok := idx[sensorID]; ok {
			groups = append(groups, name)
		}
	}
	sort.Strings(groups)
	return groups
}

// Observe contributes one confirmed anomaly to every group the sensor
// belongs to, returning any GroupWindow rows that closed as a result (either
// because the bitmask completed, or because a later bucket was observed).
func (a *Aggregator) Observe(sensorID string, ts time.Time, zScore float64) []model.GroupWindow {
	var emitted []model.GroupWindow
	for _, group := range a.GroupsFor(sensorID) {
		bucket := roundToNearest(ts, a.syncTolerance)
		bitIndex := a.sensorIndex[group][sensorID]

		cur, exists := a.open[group]
		if exists && bucket.After(cur.bucket) {
			emitted = append(emitted, a.finalize(group, cur))
			exists = false
		}
		if !exists {
			cur = &openWindow{
				bucket: bucket,
				win: model.GroupWindow{
					GroupName:     group,
					Bucket:        bucket,
					Members:       a.members[group],
					SensorZScores: make(map[string]float64),
				},
			}
			a.open[group] = cur
		}

		cur.win.Bitmask |= 1 << uint(bitIndex)
		cur.win.SensorZScores[sensorID] = zScore
		if ts.After(cur.win.Timestamp) {
			cur.win.Timestamp = ts
		}

		if isComplete(cur.win.Bitmask, len(a.members[group])) {
			emitted = append(emitted, a.finalize(group, cur))
			delete(a.open, group)
		}
	}
	return emitted
}

// Flush finalizes every still-open bucket, called when the source closes.
func (a *Aggregator) Flush() []model.GroupWindow {
	var out []model.GroupWindow
	groups := make([]string, 0, len(a.open))
	for g := range a.open {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		out = append(out, a.finalize(g, a.open[g]))
		delete(a.open, g)
	}
	return out
}

func (a *Aggregator) finalize(group string, ow *openWindow) model.GroupWindow {
	win := ow.win
	members := a.members[group]

	var sumSq float64
	contributing := make([]string, 0, len(members))
	missing := make([]string, 0, len(members))
	for i, id := range members {
		if win.Bitmask&(1<<uint(i)) != 0 {
			contributing = append(contributing, id)
			z := win.SensorZScores[id]
			sumSq += z * z
		} else {
			missing = append(missing, id)
		}
	}

	composite := 0.0
	if len(contributing) > 0 {
		composite = math.Sqrt(sumSq / float64(len(contributing)))
	}

	win.Contributing = contributing
	win.Missing = missing
	win.CompositeScore = composite
	win.IsGroupAnomaly = composite > a.groupThreshold
	return win
}

func isComplete(bitmask uint64, n int) bool {
	if n == 0 {
		return false
	}
	full := uint64(1)<<uint(n) - 1
	return bitmask&full == full
}

// roundToNearest rounds t to the nearest multiple of d since the zero time
// (time.Time.Round semantics).
func roundToNearest(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	return t.Round(d)
}
