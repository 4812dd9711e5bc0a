package ingest

import (
	"math"
	"testing"

	"github.com/shieldai/cetp-monitor/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxSensorIDLength: 16,
		InputTimeFormat:   "2006-01-02 15:04",
		SensorValueRange: []config.SensorRange{
			{Pattern: "ph*", Min: 0, Max: 14},
			{Pattern: "*", Min: 0, Max: 1000},
		},
	}
}

func TestValidate(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name      string
		rec       rawRecord
		wantValid bool
		wantMsg   string
	}{
		{"valid row", rawRecord{SensorID: "cod", Timestamp: "2026-02-01 12:00", Value: 180.0}, true, ""},
		{"missing sensor_id", rawRecord{Timestamp: "2026-02-01 12:00", Value: 180.0}, false, "missing 'sensor_id'"},
		{"missing timestamp", rawRecord{SensorID: "cod", Value: 180.0}, false, "missing 'timestamp'"},
		{"missing value", rawRecord{SensorID: "cod", Timestamp: "2026-02-01 12:00"}, false, "missing 'value'"},
		{"sensor_id too long", rawRecord{SensorID: "this_id_is_far_too_long", Timestamp: "2026-02-01 12:00", Value: 1.0}, false, ""},
		{"non-numeric value", rawRecord{SensorID: "cod", Timestamp: "2026-02-01 12:00", Value: "oops"}, false, ""},
		{"nan value", rawRecord{SensorID: "cod", Timestamp: "2026-02-01 12:00", Value: math.NaN()}, false, ""},
		{"bad timestamp", rawRecord{SensorID: "cod", Timestamp: "not-a-time", Value: 1.0}, false, ""},
		{"ph out of range", rawRecord{SensorID: "ph_1", Timestamp: "2026-02-01 12:00", Value: 20.0}, false, ""},
		{"ph in range", rawRecord{SensorID: "ph_1", Timestamp: "2026-02-01 12:00", Value: 7.0}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, reason := Validate(cfg, tt.rec)
			if valid != tt.wantValid {
				t.Fatalf("Validate() valid = %v, reason = %q, want valid %v", valid, reason, tt.wantValid)
			}
			if tt.wantValid && reason != "" {
				t.Fatalf("expected empty reason for valid record, got %q", reason)
			}
			if !tt.wantValid && reason == "" {
				t.Fatalf("expected non-empty rejection reason")
			}
		})
	}
}
