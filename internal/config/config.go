// Package config loads and validates the typed, environment-driven tunables
// for the CETP monitoring pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// SensorRange is one ordered entry of the sensor_value_range table. Patterns
// are matched in slice order (fnmatch-style glob against sensor_id); the
// first match wins, so a catch-all "*" entry must be last.
type SensorRange struct {
	Pattern string  `mapstructure:"pattern" json:"pattern"`
	Min     float64 `mapstructure:"min" json:"min"`
	Max     float64 `mapstructure:"max" json:"max"`
}

// Config holds every tunable read once at startup from CETP_* environment
// variables, mirroring krukkeniels-ai-box's viper-backed Config.
type Config struct {
	// Windowed stats
	WindowDurationMS int64 `mapstructure:"window_duration_ms"`
	WindowHopMS      int64 `mapstructure:"window_hop_ms"`

	// Z-score scorer / persistence gate
	ZScoreThreshold  float64 `mapstructure:"zscore_threshold"`
	PersistenceCount int     `mapstructure:"persistence_count"`

	// Multivariate
	SensorGroups     map[string][]string `mapstructure:"-"` // parsed from SensorGroupsJSON
	SensorGroupsJSON string              `mapstructure:"sensor_groups_json"`
	GroupThreshold   float64             `mapstructure:"group_threshold"`
	SyncToleranceMS  int64               `mapstructure:"sync_tolerance_ms"`

	// Tripwire
	CODThreshold float64 `mapstructure:"cod_threshold"`
	CODBaseline  float64 `mapstructure:"cod_baseline"`

	// Backtrack
	PipeTravelMinutes    int64 `mapstructure:"pipe_travel_minutes"`
	AsofToleranceSeconds int64 `mapstructure:"asof_tolerance_seconds"`

	// ERI + risk bands
	RiverSensitivity     map[string]float64 `mapstructure:"-"` // parsed from RiverSensitivityJSON
	RiverSensitivityJSON string             `mapstructure:"river_sensitivity_json"`
	DefaultSensitivity   float64            `mapstructure:"default_sensitivity"`
	SeverityMultiplier   float64            `mapstructure:"severity_multiplier"`
	ERIThresholdLow      float64            `mapstructure:"eri_threshold_low"`
	ERIThresholdMedium   float64            `mapstructure:"eri_threshold_medium"`
	ERIThresholdHigh     float64            `mapstructure:"eri_threshold_high"`

	// Alert router
	AlertMinRiskBand     string `mapstructure:"alert_min_risk_band"`
	AlertCooldownSeconds int64  `mapstructure:"alert_cooldown_seconds"`

	// Anti-cheat
	ZeroVarianceMinutes   int64   `mapstructure:"zero_variance_minutes"`
	DilutionWindowMinutes int64   `mapstructure:"dilution_window_minutes"`
	CODDropFraction       float64 `mapstructure:"cod_drop_fraction"`
	TSSStableFraction     float64 `mapstructure:"tss_stable_fraction"`
	BlackoutMinMinutes    int64   `mapstructure:"blackout_min_minutes"`

	// Validator
	MaxSensorIDLength    int           `mapstructure:"max_sensor_id_length"`
	SensorValueRange     []SensorRange `mapstructure:"-"` // parsed from SensorValueRangeJSON
	SensorValueRangeJSON string        `mapstructure:"sensor_value_range_json"`

	// Ingest
	InputTimeFormat      string            `mapstructure:"input_time_format"`
	CETPColumnMap        map[string]string `mapstructure:"-"` // parsed from CETPColumnMapJSON
	CETPColumnMapJSON    string            `mapstructure:"cetp_column_map_json"`
	FactoryColumnMap     map[string]string `mapstructure:"-"` // parsed from FactoryColumnMapJSON
	FactoryColumnMapJSON string            `mapstructure:"factory_column_map_json"`

	// Metrics
	MetricsIntervalSeconds   float64 `mapstructure:"metrics_interval_seconds"`
	MetricsRateWindowSeconds float64 `mapstructure:"metrics_rate_window_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("window_duration_ms", 30000)
	v.SetDefault("window_hop_ms", 5000)
	v.SetDefault("zscore_threshold", 3.0)
	v.SetDefault("persistence_count", 3)
	v.SetDefault("sensor_groups_json", `{"discharge_point_A":["pH","turbidity","flow"]}`)
	v.SetDefault("group_threshold", 2.5)
	v.SetDefault("sync_tolerance_ms", 1000)
	v.SetDefault("cod_threshold", 250.0)
	v.SetDefault("cod_baseline", 193.0)
	v.SetDefault("pipe_travel_minutes", 15)
	v.SetDefault("asof_tolerance_seconds", 120)
	v.SetDefault("river_sensitivity_json", `{}`)
	v.SetDefault("default_sensitivity", 1.0)
	v.SetDefault("severity_multiplier", 1.0)
	v.SetDefault("eri_threshold_low", 2.0)
	v.SetDefault("eri_threshold_medium", 5.0)
	v.SetDefault("eri_threshold_high", 10.0)
	v.SetDefault("alert_min_risk_band", "MEDIUM")
	v.SetDefault("alert_cooldown_seconds", 60)
	v.SetDefault("zero_variance_minutes", 5)
	v.SetDefault("dilution_window_minutes", 60)
	v.SetDefault("cod_drop_fraction", 0.8)
	v.SetDefault("tss_stable_fraction", 0.2)
	v.SetDefault("blackout_min_minutes", 30)
	v.SetDefault("max_sensor_id_length", 64)
	v.SetDefault("sensor_value_range_json", `[{"pattern":"*","min":0,"max":100000}]`)
	v.SetDefault("input_time_format", "2006-01-02 15:04")
	v.SetDefault("cetp_column_map_json", `{"timestamp":"time","cod":"cetp_inlet_cod","bod":"cetp_inlet_bod","ph":"cetp_inlet_ph","tss":"cetp_inlet_tss"}`)
	v.SetDefault("factory_column_map_json", `{"timestamp":"time","cod":"cod","bod":"bod","ph":"ph","tss":"tss"}`)
	v.SetDefault("metrics_interval_seconds", 30.0)
	v.SetDefault("metrics_rate_window_seconds", 60.0)
}

// Load reads configuration from CETP_* environment variables with typed
// defaults, following ai-box's Load() → bindEnvVars → Unmarshal sequence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CETP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	for _, key := range []string{
		"window_duration_ms", "window_hop_ms", "zscore_threshold", "persistence_count",
		"sensor_groups_json", "group_threshold", "sync_tolerance_ms",
		"cod_threshold", "cod_baseline", "pipe_travel_minutes", "asof_tolerance_seconds",
		"river_sensitivity_json", "default_sensitivity", "severity_multiplier",
		"eri_threshold_low", "eri_threshold_medium", "eri_threshold_high",
		"alert_min_risk_band", "alert_cooldown_seconds",
		"zero_variance_minutes", "dilution_window_minutes", "cod_drop_fraction", "tss_stable_fraction", "blackout_min_minutes",
		"max_sensor_id_length", "sensor_value_range_json", "input_time_format",
		"cetp_column_map_json", "factory_column_map_json",
		"metrics_interval_seconds", "metrics_rate_window_seconds",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := json.Unmarshal([]byte(cfg.SensorGroupsJSON), &cfg.SensorGroups); err != nil {
		return nil, fmt.Errorf("parse sensor_groups_json: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg.RiverSensitivityJSON), &cfg.RiverSensitivity); err != nil {
		return nil, fmt.Errorf("parse river_sensitivity_json: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg.SensorValueRangeJSON), &cfg.SensorValueRange); err != nil {
		return nil, fmt.Errorf("parse sensor_value_range_json: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg.CETPColumnMapJSON), &cfg.CETPColumnMap); err != nil {
		return nil, fmt.Errorf("parse cetp_column_map_json: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg.FactoryColumnMapJSON), &cfg.FactoryColumnMap); err != nil {
		return nil, fmt.Errorf("parse factory_column_map_json: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
