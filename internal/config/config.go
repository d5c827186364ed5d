// Package config provides configuration management for hostfold.
//
// Config file locations (priority order):
//  1. $HOSTFOLD_CONFIG
//  2. ./hostfold.yaml
//  3. ~/.config/hostfold/config.yaml
//  4. /etc/hostfold/config.yaml
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hostfold/internal/service"
)

// Config is the server configuration
type Config struct {
	Listen   string                `yaml:"listen"`
	Database DatabaseConfig        `yaml:"database"`
	Scoring  service.ScoringConfig `yaml:"scoring"`
	Watch    WatchConfig           `yaml:"watch"`
	Nmap     NmapConfig            `yaml:"nmap"`
}

// DatabaseConfig holds storage settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig configures the record drop directory
type WatchConfig struct {
	// Dir is the directory scanned for record files; empty disables the
	// watcher
	Dir string `yaml:"dir"`
}

// NmapConfig configures the built-in nmap scan trigger
type NmapConfig struct {
	// Targets are CIDR ranges or IPs; empty disables scanning
	Targets          []string `yaml:"targets"`
	PortRange        string   `yaml:"port_range"`
	ServiceDetection bool     `yaml:"service_detection"`
	OSDetection      bool     `yaml:"os_detection"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Listen:   ":3000",
		Database: DatabaseConfig{Path: "./hostfold.db"},
		Scoring:  service.DefaultScoringConfig(),
		Nmap: NmapConfig{
			ServiceDetection: true,
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./hostfold.db"
	}

	defaults := service.DefaultScoringConfig()
	if c.Scoring.AutoMergeThreshold == 0 {
		c.Scoring.AutoMergeThreshold = defaults.AutoMergeThreshold
	}
	if c.Scoring.ReviewThreshold == 0 {
		c.Scoring.ReviewThreshold = defaults.ReviewThreshold
	}
	if c.Scoring.WeightHostname == 0 {
		c.Scoring.WeightHostname = defaults.WeightHostname
	}
	if c.Scoring.WeightMACPrefix == 0 {
		c.Scoring.WeightMACPrefix = defaults.WeightMACPrefix
	}
	if c.Scoring.WeightPorts == 0 {
		c.Scoring.WeightPorts = defaults.WeightPorts
	}
	if c.Scoring.WeightSubnet == 0 {
		c.Scoring.WeightSubnet = defaults.WeightSubnet
	}
	if c.Scoring.WeightVendor == 0 {
		c.Scoring.WeightVendor = defaults.WeightVendor
	}
}

// validate rejects threshold combinations the engine cannot honor
func (c *Config) validate() error {
	s := c.Scoring
	if s.ReviewThreshold <= 0 || s.ReviewThreshold > 1 {
		return fmt.Errorf("scoring.review_threshold must be in (0, 1], got %v", s.ReviewThreshold)
	}
	if s.AutoMergeThreshold <= 0 || s.AutoMergeThreshold > 1 {
		return fmt.Errorf("scoring.auto_merge_threshold must be in (0, 1], got %v", s.AutoMergeThreshold)
	}
	if s.ReviewThreshold > s.AutoMergeThreshold {
		return fmt.Errorf("scoring.review_threshold (%v) must not exceed auto_merge_threshold (%v)",
			s.ReviewThreshold, s.AutoMergeThreshold)
	}
	return nil
}
