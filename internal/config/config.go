package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	defaultAddr            = ":3000"
	defaultLoadConcurrency = 4
)

// Config represents the main configuration structure
type Config struct {
	Mappings       map[string]MappingConfig `json:"mappings"`
	DefaultMapping string                   `json:"defaultMapping,omitempty"`

	// Transport selects how the MCP server is exposed: "http" or "stdio"
	Transport string `json:"transport,omitempty"`
	Addr      string `json:"addr,omitempty"`

	// LoadConcurrency bounds how many mapping files are parsed at once
	LoadConcurrency int `json:"loadConcurrency,omitempty"`
}

// MappingConfig describes one named proguard mapping
type MappingConfig struct {
	// Files are read in order; a class in a later file replaces the same class in an earlier one
	Files       []string `json:"files"`
	Description string   `json:"description,omitempty"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// FromFiles builds a configuration holding a single mapping made of the given files
func FromFiles(name string, files []string) (*Config, error) {
	config := &Config{
		Mappings: map[string]MappingConfig{
			name: {Files: files},
		},
	}
	applyDefaults(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// applyDefaults fills in optional settings
func applyDefaults(config *Config) {
	if config.Transport == "" {
		config.Transport = "http"
	}
	if config.Addr == "" {
		config.Addr = defaultAddr
	}
	if config.LoadConcurrency <= 0 {
		config.LoadConcurrency = defaultLoadConcurrency
	}
	// A single mapping is the default without being named
	if config.DefaultMapping == "" && len(config.Mappings) == 1 {
		for name := range config.Mappings {
			config.DefaultMapping = name
		}
	}
}

// validate checks if the configuration is valid
func validate(config *Config) error {
	if len(config.Mappings) == 0 {
		return fmt.Errorf("no mappings configured")
	}

	for name, mapping := range config.Mappings {
		if name == "" {
			return fmt.Errorf("mapping name must not be empty")
		}
		if len(mapping.Files) == 0 {
			return fmt.Errorf("mapping %q: at least one file is required", name)
		}
		for i, file := range mapping.Files {
			if file == "" {
				return fmt.Errorf("mapping %q: file %d is empty", name, i)
			}
		}
	}

	if config.DefaultMapping != "" {
		if _, ok := config.Mappings[config.DefaultMapping]; !ok {
			return fmt.Errorf("default mapping %q is not configured", config.DefaultMapping)
		}
	}

	switch config.Transport {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport %q (must be http or stdio)", config.Transport)
	}

	return nil
}
