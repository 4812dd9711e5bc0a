// Package ingest reads append-only tabular sources, normalizes columns, and
// validates each record before it enters the analytic pipeline.
package ingest

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shieldai/cetp-monitor/internal/config"
)

// rawRecord is the minimally-parsed form of one input row, before it is
// turned into a model.Reading. sensor_id/timestamp/value have already been
// teased out of the source's column layout by the caller.
type rawRecord struct {
	SensorID  string
	Timestamp interface{} // string or float64
	Value     interface{} // nil, float64, or non-numeric (rejected)
	Payload   map[string]string
}

// Validate runs the five field/type/range checks against a
// single record. It never panics; unparseable or out-of-range input is
// reported via (false, reason), never surfaced as a Go error.
func Validate(cfg *config.Config, r rawRecord) (bool, string) {
	if r.SensorID == "" {
		return false, "missing 'sensor_id'"
	}
	if r.Timestamp == nil {
		return false, "missing 'timestamp'"
	}
	if r.Value == nil {
		return false, "missing 'value'"
	}

	trimmed := strings.TrimSpace(r.SensorID)
	if trimmed == "" {
		return false, "invalid 'sensor_id' type/content: empty"
	}
	if len(r.SensorID) > cfg.MaxSensorIDLength {
		return false, fmt.Sprintf("sensor_id exceeds max length (%d > %d)", len(r.SensorID), cfg.MaxSensorIDLength)
	}

	value, ok := toFloat(r.Value)
	if !ok {
		return false, fmt.Sprintf("value must be numeric (got %T)", r.Value)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false, fmt.Sprintf("value must be finite (got %v)", value)
	}

	if !validTimestamp(cfg.InputTimeFormat, r.Timestamp) {
		return false, fmt.Sprintf("invalid 'timestamp' format: %v", r.Timestamp)
	}

	for _, rng := range cfg.SensorValueRange {
		if matchGlob(rng.Pattern, r.SensorID) {
			if value < rng.Min || value > rng.Max {
				return false, fmt.Sprintf("value %v out of range [%v, %v] for pattern %q", value, rng.Min, rng.Max, rng.Pattern)
			}
			break
		}
	}

	return true, ""
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func validTimestamp(format string, v interface{}) bool {
	switch x := v.(type) {
	case float64, int:
		return true
	case string:
		if _, err := time.Parse(format, x); err == nil {
			return true
		}
		if _, err := time.Parse(time.RFC3339, x); err == nil {
			return true
		}
		if _, err := strconv.ParseFloat(x, 64); err == nil {
			return true
		}
		return false
	default:
		return false
	}
}

// matchGlob mirrors Python's fnmatch.fnmatch for the simple "*"/"?" patterns
// used by sensor_value_range; filepath.Match implements the same grammar.
func matchGlob(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
