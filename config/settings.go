package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadSystemConfig reads settings.toml over the defaults. On first run the
// commented template is written and the defaults are returned.
func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	path := GetSettingsFilePath()

	if !FileExists(path) {
		if err := CreateDefaultSystemConfig(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// CreateDefaultSystemConfig writes the settings template unless a settings
// file already exists.
func CreateDefaultSystemConfig() error {
	path := GetSettingsFilePath()
	if FileExists(path) {
		return nil
	}
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateSystemConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write system config: %w", err)
	}
	return nil
}
