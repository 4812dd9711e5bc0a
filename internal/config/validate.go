package config

import "fmt"

var validRiskBands = map[string]bool{
	"LOW": true, "MEDIUM": true, "HIGH": true, "CRITICAL": true,
}

// Validate enforces the bounded-value rules for every tunable, accumulating
// every violation before returning, in the style of ai-box's Config.Validate().
func (c *Config) Validate() error {
	var errs []string

	if !(c.WindowDurationMS > c.WindowHopMS && c.WindowHopMS > 0) {
		errs = append(errs, fmt.Sprintf("window_duration_ms (%d) must be > window_hop_ms (%d) > 0", c.WindowDurationMS, c.WindowHopMS))
	}
	if len(c.SensorGroups) == 0 {
		errs = append(errs, "sensor_groups must be non-empty")
	}
	for name, members := range c.SensorGroups {
		if len(members) == 0 {
			errs = append(errs, fmt.Sprintf("sensor_groups[%s] must have a non-empty member list", name))
		}
	}
	if c.GroupThreshold <= 0 {
		errs = append(errs, fmt.Sprintf("group_threshold (%v) must be > 0", c.GroupThreshold))
	}
	if c.SyncToleranceMS < 1 {
		errs = append(errs, fmt.Sprintf("sync_tolerance_ms (%d) must be >= 1", c.SyncToleranceMS))
	}
	if !(c.ERIThresholdLow < c.ERIThresholdMedium && c.ERIThresholdMedium < c.ERIThresholdHigh) {
		errs = append(errs, fmt.Sprintf("eri thresholds must be strictly ascending: low=%v medium=%v high=%v", c.ERIThresholdLow, c.ERIThresholdMedium, c.ERIThresholdHigh))
	}
	for point, s := range c.RiverSensitivity {
		if s < 1.0 || s > 5.0 {
			errs = append(errs, fmt.Sprintf("river_sensitivity[%s] (%v) must be in [1.0, 5.0]", point, s))
		}
	}
	if c.DefaultSensitivity < 1.0 {
		errs = append(errs, fmt.Sprintf("default_sensitivity (%v) must be >= 1.0", c.DefaultSensitivity))
	}
	if c.SeverityMultiplier <= 0 {
		errs = append(errs, fmt.Sprintf("severity_multiplier (%v) must be > 0", c.SeverityMultiplier))
	}
	if !validRiskBands[c.AlertMinRiskBand] {
		errs = append(errs, fmt.Sprintf("alert_min_risk_band (%q) must be one of LOW, MEDIUM, HIGH, CRITICAL", c.AlertMinRiskBand))
	}
	if c.AlertCooldownSeconds < 0 {
		errs = append(errs, fmt.Sprintf("alert_cooldown_seconds (%d) must be >= 0", c.AlertCooldownSeconds))
	}
	if len(c.SensorValueRange) == 0 {
		errs = append(errs, "sensor_value_range must be non-empty")
	} else {
		hasCatchAll := false
		for _, r := range c.SensorValueRange {
			if r.Pattern == "*" {
				hasCatchAll = true
			}
			if r.Min > r.Max {
				errs = append(errs, fmt.Sprintf("sensor_value_range[%s] min (%v) > max (%v)", r.Pattern, r.Min, r.Max))
			}
		}
		if !hasCatchAll {
			errs = append(errs, `sensor_value_range must include a catch-all "*" pattern`)
		}
	}
	if c.MaxSensorIDLength <= 0 {
		errs = append(errs, fmt.Sprintf("max_sensor_id_length (%d) must be > 0", c.MaxSensorIDLength))
	}
	if c.ZeroVarianceMinutes <= 0 {
		errs = append(errs, "zero_variance_minutes must be > 0")
	}
	if c.DilutionWindowMinutes <= 0 {
		errs = append(errs, "dilution_window_minutes must be > 0")
	}
	if c.BlackoutMinMinutes <= 0 {
		errs = append(errs, "blackout_min_minutes must be > 0")
	}
	for _, key := range []string{"timestamp", "cod", "bod", "ph", "tss"} {
		if c.CETPColumnMap[key] == "" {
			errs = append(errs, fmt.Sprintf("cetp_column_map missing required key %q", key))
		}
		if c.FactoryColumnMap[key] == "" {
			errs = append(errs, fmt.Sprintf("factory_column_map missing required key %q", key))
		}
	}

	if len(errs) > 0 {
		msg := "invalid configuration:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
