package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TransportStream   = "stream"
	TransportBuffered = "buffered"

	LanguageChinese = "zh"
	LanguageEnglish = "en"
)

type SystemConfig struct {
	DataDirectory  string `toml:"data_directory"`
	Transport      string `toml:"transport"`
	Language       string `toml:"language"`
	SaveDebounceMS int    `toml:"save_debounce_ms"`
}

type Config struct {
	DataDirectory string
	Transport     string
	Language      string
	SaveDebounce  time.Duration
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("MYCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if transport := os.Getenv("MYCHAT_TRANSPORT"); transport != "" {
		c.Transport = transport
	}
	if lang := os.Getenv("MYCHAT_LANG"); lang != "" {
		c.Language = lang
	}
	if ms := os.Getenv("MYCHAT_SAVE_DEBOUNCE_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n >= 0 {
			c.SaveDebounce = time.Duration(n) * time.Millisecond
		}
	}
}

func (c *Config) normalize() {
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = TransportStream
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language != LanguageEnglish {
		c.Language = LanguageChinese
	}
	if c.SaveDebounce < 0 {
		c.SaveDebounce = 0
	}
}

// Load reads settings.toml (creating it on first run), applies environment
// overrides and makes sure the data directory exists with 0700 permissions.
func Load() (*Config, error) {
	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{
		DataDirectory: systemCfg.DataDirectory,
		Transport:     systemCfg.Transport,
		Language:      systemCfg.Language,
		SaveDebounce:  time.Duration(systemCfg.SaveDebounceMS) * time.Millisecond,
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}
	cfg.applyEnvOverrides()
	cfg.normalize()

	if cfg.Transport != TransportStream && cfg.Transport != TransportBuffered {
		return nil, fmt.Errorf("invalid transport %q: want %q or %q", cfg.Transport, TransportStream, TransportBuffered)
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	return cfg, nil
}
