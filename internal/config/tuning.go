package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pulse-data/venue.report/internal/pulse"
)

// TuningConfig represents the root configuration for pulse tuning
// parameters. The schema matches the /api/pulse/params endpoint so the
// same JSON can be used for both startup configuration and runtime
// updates.
type TuningConfig struct {
	// Target ranges for factor scoring
	SoundMin *float64 `json:"sound_min,omitempty"` // dB
	SoundMax *float64 `json:"sound_max,omitempty"` // dB
	LightMin *float64 `json:"light_min,omitempty"` // lux
	LightMax *float64 `json:"light_max,omitempty"` // lux
	TempMin  *float64 `json:"temp_min,omitempty"`  // degrees F
	TempMax  *float64 `json:"temp_max,omitempty"`  // degrees F

	// Composite weights
	SoundWeight *float64 `json:"sound_weight,omitempty"`
	LightWeight *float64 `json:"light_weight,omitempty"`

	// Detection window params
	AnomalyWindowSamples *int    `json:"anomaly_window_samples,omitempty"`
	AnomalyWindowAge     *string `json:"anomaly_window_age,omitempty"` // duration string like "30m"

	// Rollup params
	RollupInterval *string `json:"rollup_interval,omitempty"` // duration string like "1h"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SoundMin != nil && c.SoundMax != nil && *c.SoundMin >= *c.SoundMax {
		return fmt.Errorf("sound_min %.1f must be below sound_max %.1f", *c.SoundMin, *c.SoundMax)
	}
	if c.LightMin != nil && c.LightMax != nil && *c.LightMin >= *c.LightMax {
		return fmt.Errorf("light_min %.1f must be below light_max %.1f", *c.LightMin, *c.LightMax)
	}
	if c.TempMin != nil && c.TempMax != nil && *c.TempMin >= *c.TempMax {
		return fmt.Errorf("temp_min %.1f must be below temp_max %.1f", *c.TempMin, *c.TempMax)
	}

	// Weights must each sit in [0,1]; when both are given they must
	// cover the whole composite.
	if c.SoundWeight != nil && (*c.SoundWeight < 0 || *c.SoundWeight > 1) {
		return fmt.Errorf("sound_weight must be between 0 and 1, got %f", *c.SoundWeight)
	}
	if c.LightWeight != nil && (*c.LightWeight < 0 || *c.LightWeight > 1) {
		return fmt.Errorf("light_weight must be between 0 and 1, got %f", *c.LightWeight)
	}
	if c.SoundWeight != nil && c.LightWeight != nil {
		if sum := *c.SoundWeight + *c.LightWeight; sum < 0.999 || sum > 1.001 {
			return fmt.Errorf("sound_weight and light_weight must sum to 1, got %f", sum)
		}
	}

	if c.AnomalyWindowSamples != nil && *c.AnomalyWindowSamples <= 0 {
		return fmt.Errorf("anomaly_window_samples must be positive, got %d", *c.AnomalyWindowSamples)
	}

	// Validate AnomalyWindowAge can be parsed if set
	if c.AnomalyWindowAge != nil && *c.AnomalyWindowAge != "" {
		if _, err := time.ParseDuration(*c.AnomalyWindowAge); err != nil {
			return fmt.Errorf("invalid anomaly_window_age '%s': %w", *c.AnomalyWindowAge, err)
		}
	}

	// Validate RollupInterval can be parsed if set
	if c.RollupInterval != nil && *c.RollupInterval != "" {
		if _, err := time.ParseDuration(*c.RollupInterval); err != nil {
			return fmt.Errorf("invalid rollup_interval '%s': %w", *c.RollupInterval, err)
		}
	}

	return nil
}

// Targets assembles a pulse.Targets from the configured overrides,
// falling back to the built-in defaults for any unset field.
func (c *TuningConfig) Targets() pulse.Targets {
	t := pulse.DefaultTargets()
	if c.SoundMin != nil {
		t.Sound.Min = *c.SoundMin
	}
	if c.SoundMax != nil {
		t.Sound.Max = *c.SoundMax
	}
	if c.LightMin != nil {
		t.Light.Min = *c.LightMin
	}
	if c.LightMax != nil {
		t.Light.Max = *c.LightMax
	}
	if c.TempMin != nil {
		t.IndoorTemp.Min = *c.TempMin
	}
	if c.TempMax != nil {
		t.IndoorTemp.Max = *c.TempMax
	}
	if c.SoundWeight != nil {
		t.SoundWeight = *c.SoundWeight
	}
	if c.LightWeight != nil {
		t.LightWeight = *c.LightWeight
	}
	return t
}

// GetAnomalyWindowSamples returns the anomaly_window_samples value or the default.
func (c *TuningConfig) GetAnomalyWindowSamples() int {
	if c.AnomalyWindowSamples == nil {
		return 60 // default
	}
	return *c.AnomalyWindowSamples
}

// GetAnomalyWindowAge parses and returns the AnomalyWindowAge as a time.Duration.
func (c *TuningConfig) GetAnomalyWindowAge() time.Duration {
	if c.AnomalyWindowAge == nil || *c.AnomalyWindowAge == "" {
		return 30 * time.Minute // default
	}
	d, err := time.ParseDuration(*c.AnomalyWindowAge)
	if err != nil {
		return 30 * time.Minute // default on parse error
	}
	return d
}

// GetRollupInterval parses and returns the RollupInterval as a time.Duration.
func (c *TuningConfig) GetRollupInterval() time.Duration {
	if c.RollupInterval == nil || *c.RollupInterval == "" {
		return time.Hour // default
	}
	d, err := time.ParseDuration(*c.RollupInterval)
	if err != nil {
		return time.Hour // default on parse error
	}
	return d
}
