package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rulesync/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/rulesync"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns the per-user configuration directory.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from a single specified directory.
// A missing config.yaml is not an error; defaults are returned.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()
	if configPath == "" {
		return config, nil
	}

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}
