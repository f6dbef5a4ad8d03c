package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardDetails")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardDetails")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-details")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-details")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Culling.Backend {
	case BackendGL, BackendSoftware:
	default:
		return fmt.Errorf("unknown backend %q", c.Culling.Backend)
	}
	if c.Details.LoadToGPUDistance <= 0 {
		return fmt.Errorf("load_to_gpu_distance must be positive, got %v", c.Details.LoadToGPUDistance)
	}
	if c.Culling.MaxCullingDistance <= 0 {
		return fmt.Errorf("max_culling_distance must be positive, got %v", c.Culling.MaxCullingDistance)
	}
	if c.Culling.UpdateProbesPerFrame < 0 {
		return fmt.Errorf("update_probes_per_frame must not be negative, got %d", c.Culling.UpdateProbesPerFrame)
	}
	return nil
}
