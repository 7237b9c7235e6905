// ABOUTME: XDG-aware default locations for the config file and data directory
// ABOUTME: Environment overrides take priority over XDG base directories

package config

import (
	"os"
	"path/filepath"
)

// ConfigEnv overrides the config file location.
const ConfigEnv = "COVEN_OPERATOR_CONFIG"

// DefaultConfigPath returns the path to the operator config file.
// Priority: COVEN_OPERATOR_CONFIG env var > XDG_CONFIG_HOME/coven/operator.yaml > ~/.config/coven/operator.yaml
func DefaultConfigPath() string {
	if envPath := os.Getenv(ConfigEnv); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "operator.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "operator.yaml")
}

// DefaultDataDir returns the directory for state, ledger and crypto data.
// Priority: XDG_DATA_HOME/coven-operator > ~/.local/share/coven-operator
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "coven-operator")
}
