// Package config provides layered configuration loading primitives.
//
// Configuration is resolved in three layers, later layers overriding
// earlier ones:
//
//  1. Defaults - hardcoded default values
//  2. File - a YAML configuration document
//  3. Environment - environment variables
//
// Each consumer owns its config struct and defaults; this package supplies
// the file merge and environment walk.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layer identifies a configuration layer source.
type Layer string

const (
	// LayerDefaults represents hardcoded default values.
	LayerDefaults Layer = "defaults"

	// LayerFile represents configuration from a YAML document.
	LayerFile Layer = "file"

	// LayerEnv represents configuration from environment variables.
	LayerEnv Layer = "env"
)

// MergeFile loads the YAML document at path and merges it into cfg.
// A missing file is reported via os.IsNotExist so callers can treat it as
// an absent layer rather than an error.
func MergeFile(cfg interface{}, path string) error {
	// #nosec G304 -- path comes from the application configuration system, not user input.
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Load resolves cfg through all three layers: cfg arrives holding defaults,
// the file at path (if any) is merged over it, then environment variables
// read via `env` struct tags override both.
func Load(cfg interface{}, path string) error {
	if path != "" {
		if err := MergeFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	return nil
}
