package main

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Config is the optional YAML form of this server's identity, following
// the teacher's convention of a flag-loaded config file rather than a
// pile of individual flags for every field.
type Config struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions,omitempty"`
}

// loadConfig reads and parses path, or returns the zero Config if path is
// empty.
func loadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
