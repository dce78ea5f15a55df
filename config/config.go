// Package config provides configuration loading and management for
// procsight.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete procsight configuration
type Config struct {
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Files      FilesConfig      `yaml:"files"`
	Output     OutputConfig     `yaml:"output"`
}

// AnalysisConfig toggles the optional analysis passes
type AnalysisConfig struct {
	// Halstead enables operator/operand metrics per function
	Halstead bool `yaml:"halstead"`
	// Todos enables comment annotation and module header extraction
	Todos bool `yaml:"todos"`
	// Cursors enables SQL cursor lifecycle analysis
	Cursors bool `yaml:"cursors"`
	// Memory enables memory-safety heuristics
	Memory bool `yaml:"memory"`
}

// ThresholdsConfig sets the complexity levels above which functions are
// flagged in reports
type ThresholdsConfig struct {
	Cyclomatic int `yaml:"cyclomatic"`
	Cognitive  int `yaml:"cognitive"`
}

// FilesConfig controls file discovery
type FilesConfig struct {
	// Pattern is the glob matched against file names (default: *.pc)
	Pattern string `yaml:"pattern"`
	// Recursive widens the pattern to all subdirectories
	Recursive bool `yaml:"recursive"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	// Format is one of: json, markdown, html, csv
	Format string `yaml:"format"`
	// Path is the output file; empty writes to stdout
	Path string `yaml:"path"`
}

// validFormats are the report formats Output.Format accepts.
var validFormats = map[string]bool{
	"json":     true,
	"markdown": true,
	"html":     true,
	"csv":      true,
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Halstead: true,
			Todos:    true,
			Cursors:  true,
			Memory:   true,
		},
		Thresholds: ThresholdsConfig{
			Cyclomatic: 10,
			Cognitive:  15,
		},
		Files: FilesConfig{
			Pattern:   "*.pc",
			Recursive: true,
		},
		Output: OutputConfig{
			Format: "json",
			Path:   "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Files.Pattern == "" {
		return fmt.Errorf("files.pattern is required")
	}
	if c.Thresholds.Cyclomatic < 1 {
		return fmt.Errorf("thresholds.cyclomatic must be at least 1")
	}
	if c.Thresholds.Cognitive < 0 {
		return fmt.Errorf("thresholds.cognitive must not be negative")
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output.format must be one of json, markdown, html, csv")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
