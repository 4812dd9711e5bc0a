// Package alert routes ERIReadings through a band filter, a per-point
// cooldown, and risk-band field masking before they become AlertRecords.
package alert

import (
	"time"

	"github.com/shieldai/cetp-monitor/internal/model"
)

var levelByBand = map[model.RiskBand]model.AlertLevel{
	model.RiskMedium:   model.LevelInfo,
	model.RiskHigh:     model.LevelWarning,
	model.RiskCritical: model.LevelCritical,
}

// cooldownStore tracks the last emitted alert timestamp per discharge point
// as a per-key state machine.
type cooldownStore struct {
	last map[string]time.Time
}

func newCooldownStore() *cooldownStore {
	return &cooldownStore{last: make(map[string]time.Time)}
}

// allow reports whether ts clears the cooldown for point, recording ts as
// the new high-water mark when it does.
func (c *cooldownStore) allow(point string, ts time.Time, cooldown time.Duration) bool {
	if cooldown <= 0 {
		c.last[point] = ts
		return true
	}
	prev, ok := c.last[point]
	if ok && ts.Sub(prev) < cooldown {
		return false
	}
	c.last[point] = ts
	return true
}

// Router applies three gates in order: band filter, cooldown,
// level assignment + masking.
type Router struct {
	minBandRank int
	cooldown    time.Duration
	store       *cooldownStore
}

// NewRouter constructs a Router for ALERT_MIN_RISK_BAND and
// ALERT_COOLDOWN_SECONDS.
func NewRouter(minBand model.RiskBand, cooldown time.Duration) *Router {
	return &Router{minBandRank: model.RiskBandRank(minBand), cooldown: cooldown, store: newCooldownStore()}
}

// Route runs the three gates and returns the resulting AlertRecord, or
// ok=false if the row was dropped by the band filter or cooldown.
func (r *Router) Route(in model.ERIReading) (model.AlertRecord, bool) {
	if model.RiskBandRank(in.RiskBand) < r.minBandRank {
		return model.AlertRecord{}, false
	}

	if !r.store.allow(in.DischargePointID, in.Timestamp, r.cooldown) {
		return model.AlertRecord{}, false
	}

	level, ok := levelByBand[in.RiskBand]
	if !ok {
		level = model.LevelInfo
	}

	out := model.AlertRecord{ERIReading: in, AlertLevel: level}
	if in.RiskBand == model.RiskMedium {
		out.Masked = true
		maskMediumFields(&out)
	}
	return out, true
}

// maskMediumFields zeroes the detail fields carried on MEDIUM-band alerts:
// string fields to empty, float fields to 0, including sensitivity_factor,
// an intentional information loss at this band despite the cost to
// downstream consumers.
func maskMediumFields(rec *model.AlertRecord) {
	rec.AttributionDetail = ""
	rec.AlertMessage = ""
	rec.SensitivityFactor = 0
}
