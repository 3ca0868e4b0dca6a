package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"mychat/model"
)

type UserConfig struct {
	API model.APIConfig `toml:"api"`
}

func UserConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// LoadAPIConfig reads the [api] table of <dataDir>/config.toml. Keys missing
// from the file keep their defaults, and MYCHAT_BASE_URL, MYCHAT_API_KEY and
// MYCHAT_MODEL override whatever was read. A missing file is not an error.
func LoadAPIConfig(dataDir string) (model.APIConfig, error) {
	cfg := &UserConfig{API: model.DefaultAPIConfig()}
	path := UserConfigPath(dataDir)

	if FileExists(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return model.DefaultAPIConfig(), fmt.Errorf("failed to parse user config: %w", err)
		}
	}

	applyAPIEnvOverrides(&cfg.API)
	return cfg.API.Normalize(), nil
}

func applyAPIEnvOverrides(c *model.APIConfig) {
	if v, ok := os.LookupEnv("MYCHAT_BASE_URL"); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := os.LookupEnv("MYCHAT_API_KEY"); ok {
		c.APIKey = v
	}
	if v := os.Getenv("MYCHAT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("MYCHAT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Temperature = f
		}
	}
}

// SaveAPIConfig writes cfg to <dataDir>/config.toml with 0600 permissions.
func SaveAPIConfig(dataDir string, cfg model.APIConfig) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := UserConfigPath(dataDir)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create user config file: %w", err)
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(UserConfig{API: cfg}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode user config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write user config: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save user config: %w", err)
	}
	return nil
}

// CreateDefaultUserConfig writes the commented template if no user config
// exists yet.
func CreateDefaultUserConfig(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := UserConfigPath(dataDir)
	if FileExists(path) {
		return nil
	}

	if err := os.WriteFile(path, []byte(GenerateUserConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	return nil
}
