package config

import "testing"

func validConfig() Config {
	return Config{
		WindowDurationMS:      30000,
		WindowHopMS:           5000,
		SensorGroups:          map[string][]string{"g": {"a", "b"}},
		GroupThreshold:        2.5,
		SyncToleranceMS:       1000,
		ERIThresholdLow:       2,
		ERIThresholdMedium:    5,
		ERIThresholdHigh:      10,
		DefaultSensitivity:    1.0,
		SeverityMultiplier:    1.0,
		AlertMinRiskBand:      "MEDIUM",
		AlertCooldownSeconds:  60,
		SensorValueRange:      []SensorRange{{Pattern: "*", Min: 0, Max: 100}},
		MaxSensorIDLength:     64,
		ZeroVarianceMinutes:   5,
		DilutionWindowMinutes: 60,
		BlackoutMinMinutes:    30,
		RiverSensitivity:      map[string]float64{"point_a": 2.0},
		CETPColumnMap:         map[string]string{"timestamp": "time", "cod": "cetp_inlet_cod", "bod": "cetp_inlet_bod", "ph": "cetp_inlet_ph", "tss": "cetp_inlet_tss"},
		FactoryColumnMap:      map[string]string{"timestamp": "time", "cod": "cod", "bod": "bod", "ph": "ph", "tss": "tss"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config passes", func(c *Config) {}, false},
		{"hop must be less than duration", func(c *Config) { c.WindowHopMS = c.WindowDurationMS }, true},
		{"empty sensor groups rejected", func(c *Config) { c.SensorGroups = nil }, true},
		{"empty group member list rejected", func(c *Config) { c.SensorGroups["g"] = nil }, true},
		{"non-ascending eri thresholds rejected", func(c *Config) { c.ERIThresholdMedium = c.ERIThresholdLow }, true},
		{"sensitivity out of range rejected", func(c *Config) { c.RiverSensitivity["point_a"] = 9.0 }, true},
		{"unknown risk band rejected", func(c *Config) { c.AlertMinRiskBand = "SEVERE" }, true},
		{"missing catch-all range rejected", func(c *Config) {
			c.SensorValueRange = []SensorRange{{Pattern: "ph*", Min: 0, Max: 14}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
