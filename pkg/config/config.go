// Package config provides configuration loading and management for segqc.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"segqc/pkg/validation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Validation thresholds applied to every segmentation
	Validation struct {
		// MinVoxelsPerLabel flags labels carrying fewer voxels than this
		MinVoxelsPerLabel int `yaml:"minVoxelsPerLabel"`

		// MinVoxelsPerComponent flags and removes components smaller than this
		MinVoxelsPerComponent int `yaml:"minVoxelsPerComponent"`

		// MaxSegmentationRatio is the labeled fraction above which over-segmentation is suspected
		MaxSegmentationRatio float64 `yaml:"maxSegmentationRatio"`

		// MinSegmentationRatio is the labeled fraction below which under-segmentation is suspected
		MinSegmentationRatio float64 `yaml:"minSegmentationRatio"`

		// EnableCleanup allows the orchestrator to remediate flagged volumes
		EnableCleanup bool `yaml:"enableCleanup"`
	} `yaml:"validation"`

	// Label dictionary parameters
	Labels struct {
		// ConfDir is the directory holding the label configuration files
		ConfDir string `yaml:"confDir"`

		// ColorsFile is the JSON file mapping label IDs to names and colors
		ColorsFile string `yaml:"colorsFile"`

		// DictFile is the JSON file mapping label names to IDs, used to
		// synthesize fallback colors when ColorsFile is absent
		DictFile string `yaml:"dictFile"`
	} `yaml:"labels"`

	// Report output parameters
	Report struct {
		// OutputDir is where validation reports are written
		OutputDir string `yaml:"outputDir"`
	} `yaml:"report"`

	// Download cache parameters
	Cache struct {
		// Dir is the cache directory
		Dir string `yaml:"dir"`

		// MaxSizeMB is the cache byte budget in megabytes
		MaxSizeMB int `yaml:"maxSizeMB"`

		// TTLHours is the default time-to-live for cached files
		TTLHours int `yaml:"ttlHours"`
	} `yaml:"cache"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	v := validation.DefaultConfig()
	cfg.Validation.MinVoxelsPerLabel = v.MinVoxelsPerLabel
	cfg.Validation.MinVoxelsPerComponent = v.MinVoxelsPerComponent
	cfg.Validation.MaxSegmentationRatio = v.MaxSegmentationRatio
	cfg.Validation.MinSegmentationRatio = v.MinSegmentationRatio
	cfg.Validation.EnableCleanup = v.EnableCleanup

	cfg.Labels.ConfDir = "conf"
	cfg.Labels.ColorsFile = "label_colors.json"
	cfg.Labels.DictFile = "label_dict.json"

	cfg.Report.OutputDir = "reports"

	cfg.Cache.Dir = "cache"
	cfg.Cache.MaxSizeMB = 10240
	cfg.Cache.TTLHours = 48

	return cfg
}

// ValidationConfig converts the YAML section into the engine's config record
func (c *Config) ValidationConfig() validation.Config {
	return validation.Config{
		MinVoxelsPerLabel:     c.Validation.MinVoxelsPerLabel,
		MinVoxelsPerComponent: c.Validation.MinVoxelsPerComponent,
		MaxSegmentationRatio:  c.Validation.MaxSegmentationRatio,
		MinSegmentationRatio:  c.Validation.MinSegmentationRatio,
		EnableCleanup:         c.Validation.EnableCleanup,
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
