package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// TuningConfig represents the root configuration for tuning parameters.
// All fields are optional pointers so a partial config file only overrides
// the values it names; the Get* accessors supply defaults for absent fields.
type TuningConfig struct {
	// Association params
	AssociationMaxCost *float64 `json:"association_max_cost,omitempty" yaml:"association_max_cost,omitempty"`
	HighConfidence     *float64 `json:"high_confidence,omitempty" yaml:"high_confidence,omitempty"`
	HitsToConfirm      *int     `json:"hits_to_confirm,omitempty" yaml:"hits_to_confirm,omitempty"`
	MaxMisses          *int     `json:"max_misses,omitempty" yaml:"max_misses,omitempty"`
	MaxMissesConfirmed *int     `json:"max_misses_confirmed,omitempty" yaml:"max_misses_confirmed,omitempty"`
	LostGraceFrames    *int     `json:"lost_grace_frames,omitempty" yaml:"lost_grace_frames,omitempty"`
	MaxHistoryLength   *int     `json:"max_history_length,omitempty" yaml:"max_history_length,omitempty"`
	MaxTracks          *int     `json:"max_tracks,omitempty" yaml:"max_tracks,omitempty"`

	// Distance estimation params
	ReferenceHeights       map[string]float64 `json:"reference_heights,omitempty" yaml:"reference_heights,omitempty"`
	DefaultReferenceHeight *float64           `json:"default_reference_height,omitempty" yaml:"default_reference_height,omitempty"`
	FocalLengthPixels      *float64           `json:"focal_length_pixels,omitempty" yaml:"focal_length_pixels,omitempty"`
	MaxPlausibleDistance   *float64           `json:"max_plausible_distance,omitempty" yaml:"max_plausible_distance,omitempty"`

	// Analysis params
	AnalyzeEveryFrames *int     `json:"analyze_every_frames,omitempty" yaml:"analyze_every_frames,omitempty"`
	AnalysisTimeout    *string  `json:"analysis_timeout,omitempty" yaml:"analysis_timeout,omitempty"` // duration string like "30s"
	MovingSpeedPx      *float64 `json:"moving_speed_px,omitempty" yaml:"moving_speed_px,omitempty"`

	// Flight safety params
	MinAltitudeMeters *float64 `json:"min_altitude_meters,omitempty" yaml:"min_altitude_meters,omitempty"`
	MaxAltitudeMeters *float64 `json:"max_altitude_meters,omitempty" yaml:"max_altitude_meters,omitempty"`
	ControlEnabled    *bool    `json:"control_enabled,omitempty" yaml:"control_enabled,omitempty"`

	// Detection log params
	FlushEveryFrames *int `json:"flush_every_frames,omitempty" yaml:"flush_every_frames,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a config file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The extension selects the decoder. Fields omitted from the file retain
// their default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
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

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.AssociationMaxCost != nil {
		if *c.AssociationMaxCost <= 0 || *c.AssociationMaxCost > 1 {
			return fmt.Errorf("association_max_cost must be in (0, 1], got %f", *c.AssociationMaxCost)
		}
	}
	if c.HighConfidence != nil {
		if *c.HighConfidence < 0 || *c.HighConfidence > 1 {
			return fmt.Errorf("high_confidence must be between 0 and 1, got %f", *c.HighConfidence)
		}
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be >= 1, got %d", *c.HitsToConfirm)
	}
	if c.MaxMisses != nil && *c.MaxMisses < 1 {
		return fmt.Errorf("max_misses must be >= 1, got %d", *c.MaxMisses)
	}
	if c.MaxMissesConfirmed != nil && *c.MaxMissesConfirmed < 1 {
		return fmt.Errorf("max_misses_confirmed must be >= 1, got %d", *c.MaxMissesConfirmed)
	}
	if c.LostGraceFrames != nil && *c.LostGraceFrames < 0 {
		return fmt.Errorf("lost_grace_frames must be non-negative, got %d", *c.LostGraceFrames)
	}
	if c.MaxHistoryLength != nil && *c.MaxHistoryLength < 2 {
		return fmt.Errorf("max_history_length must be >= 2, got %d", *c.MaxHistoryLength)
	}
	if c.MaxTracks != nil && *c.MaxTracks < 1 {
		return fmt.Errorf("max_tracks must be >= 1, got %d", *c.MaxTracks)
	}
	for class, h := range c.ReferenceHeights {
		if h <= 0 {
			return fmt.Errorf("reference height for class %q must be positive, got %f", class, h)
		}
	}
	if c.DefaultReferenceHeight != nil && *c.DefaultReferenceHeight <= 0 {
		return fmt.Errorf("default_reference_height must be positive, got %f", *c.DefaultReferenceHeight)
	}
	if c.FocalLengthPixels != nil && *c.FocalLengthPixels <= 0 {
		return fmt.Errorf("focal_length_pixels must be positive, got %f", *c.FocalLengthPixels)
	}
	if c.MaxPlausibleDistance != nil && *c.MaxPlausibleDistance <= 0 {
		return fmt.Errorf("max_plausible_distance must be positive, got %f", *c.MaxPlausibleDistance)
	}
	if c.AnalyzeEveryFrames != nil && *c.AnalyzeEveryFrames < 1 {
		return fmt.Errorf("analyze_every_frames must be >= 1, got %d", *c.AnalyzeEveryFrames)
	}
	if c.AnalysisTimeout != nil && *c.AnalysisTimeout != "" {
		if _, err := time.ParseDuration(*c.AnalysisTimeout); err != nil {
			return fmt.Errorf("invalid analysis_timeout '%s': %w", *c.AnalysisTimeout, err)
		}
	}
	if c.MinAltitudeMeters != nil && *c.MinAltitudeMeters < 0 {
		return fmt.Errorf("min_altitude_meters must be non-negative, got %f", *c.MinAltitudeMeters)
	}
	if c.MinAltitudeMeters != nil && c.MaxAltitudeMeters != nil {
		if *c.MinAltitudeMeters >= *c.MaxAltitudeMeters {
			return fmt.Errorf("min_altitude_meters (%f) must be below max_altitude_meters (%f)",
				*c.MinAltitudeMeters, *c.MaxAltitudeMeters)
		}
	}
	if c.FlushEveryFrames != nil && *c.FlushEveryFrames < 1 {
		return fmt.Errorf("flush_every_frames must be >= 1, got %d", *c.FlushEveryFrames)
	}
	return nil
}

// GetAssociationMaxCost returns the association_max_cost value or the default.
// Cost is 1 - IoU, so 0.7 accepts pairs overlapping by at least 30%.
func (c *TuningConfig) GetAssociationMaxCost() float64 {
	if c.AssociationMaxCost == nil {
		return 0.7
	}
	return *c.AssociationMaxCost
}

// GetHighConfidence returns the high_confidence value or the default.
func (c *TuningConfig) GetHighConfidence() float64 {
	if c.HighConfidence == nil {
		return 0.5
	}
	return *c.HighConfidence
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 3
	}
	return *c.MaxMisses
}

// GetMaxMissesConfirmed returns the max_misses_confirmed value or the default.
func (c *TuningConfig) GetMaxMissesConfirmed() int {
	if c.MaxMissesConfirmed == nil {
		return 5
	}
	return *c.MaxMissesConfirmed
}

// GetLostGraceFrames returns the lost_grace_frames value or the default.
func (c *TuningConfig) GetLostGraceFrames() int {
	if c.LostGraceFrames == nil {
		return 30
	}
	return *c.LostGraceFrames
}

// GetMaxHistoryLength returns the max_history_length value or the default.
func (c *TuningConfig) GetMaxHistoryLength() int {
	if c.MaxHistoryLength == nil {
		return 10
	}
	return *c.MaxHistoryLength
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 200
	}
	return *c.MaxTracks
}

// GetReferenceHeights returns a copy of the per-class reference heights,
// falling back to the VisDrone ground-object defaults when unset.
func (c *TuningConfig) GetReferenceHeights() map[string]float64 {
	if len(c.ReferenceHeights) > 0 {
		out := make(map[string]float64, len(c.ReferenceHeights))
		for k, v := range c.ReferenceHeights {
			out[k] = v
		}
		return out
	}
	return map[string]float64{
		"pedestrian":      1.7,
		"people":          1.7,
		"bicycle":         1.2,
		"car":             1.5,
		"van":             2.0,
		"truck":           3.0,
		"tricycle":        1.8,
		"awning-tricycle": 1.8,
		"bus":             3.0,
		"motor":           1.2,
	}
}

// GetDefaultReferenceHeight returns the fallback height for unlisted classes.
func (c *TuningConfig) GetDefaultReferenceHeight() float64 {
	if c.DefaultReferenceHeight == nil {
		return 1.0
	}
	return *c.DefaultReferenceHeight
}

// GetFocalLengthPixels returns the focal_length_pixels value or the default.
func (c *TuningConfig) GetFocalLengthPixels() float64 {
	if c.FocalLengthPixels == nil {
		return 1000.0
	}
	return *c.FocalLengthPixels
}

// GetMaxPlausibleDistance returns the max_plausible_distance value or the default.
func (c *TuningConfig) GetMaxPlausibleDistance() float64 {
	if c.MaxPlausibleDistance == nil {
		return 1000.0
	}
	return *c.MaxPlausibleDistance
}

// GetAnalyzeEveryFrames returns the analyze_every_frames value or the default.
func (c *TuningConfig) GetAnalyzeEveryFrames() int {
	if c.AnalyzeEveryFrames == nil {
		return 30
	}
	return *c.AnalyzeEveryFrames
}

// GetAnalysisTimeout parses and returns the AnalysisTimeout as a time.Duration.
func (c *TuningConfig) GetAnalysisTimeout() time.Duration {
	if c.AnalysisTimeout == nil || *c.AnalysisTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.AnalysisTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetMovingSpeedPx returns the per-frame displacement (pixels) above which a
// track is reported as moving, or the default.
func (c *TuningConfig) GetMovingSpeedPx() float64 {
	if c.MovingSpeedPx == nil {
		return 2.0
	}
	return *c.MovingSpeedPx
}

// GetMinAltitudeMeters returns the min_altitude_meters value or the default.
func (c *TuningConfig) GetMinAltitudeMeters() float64 {
	if c.MinAltitudeMeters == nil {
		return 10.0
	}
	return *c.MinAltitudeMeters
}

// GetMaxAltitudeMeters returns the max_altitude_meters value or the default.
func (c *TuningConfig) GetMaxAltitudeMeters() float64 {
	if c.MaxAltitudeMeters == nil {
		return 150.0
	}
	return *c.MaxAltitudeMeters
}

// GetControlEnabled returns the control_enabled value or the default.
func (c *TuningConfig) GetControlEnabled() bool {
	if c.ControlEnabled == nil {
		return false // default: commands are logged, not dispatched
	}
	return *c.ControlEnabled
}

// GetFlushEveryFrames returns the flush_every_frames value or the default.
func (c *TuningConfig) GetFlushEveryFrames() int {
	if c.FlushEveryFrames == nil {
		return 30
	}
	return *c.FlushEveryFrames
}
