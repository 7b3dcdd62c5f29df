package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"portico/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/portico"
	configFileName = "config.yaml"
)

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from a single specified directory.
// The directory should contain config.yaml; missing files fall back to defaults.
func LoadConfig(configPath string) (PlatformConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return PlatformConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		// config malformed
		return PlatformConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// StateDirOrDefault returns the configured state directory, falling back to
// {configPath}/state.
func (c PlatformConfig) StateDirOrDefault(configPath string) string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return filepath.Join(configPath, "state")
}
