package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/model"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{
		"MYCHAT_DATA_DIR", "MYCHAT_TRANSPORT", "MYCHAT_LANG", "MYCHAT_SAVE_DEBOUNCE_MS",
		"MYCHAT_BASE_URL", "MYCHAT_MODEL", "MYCHAT_TEMPERATURE", "MYCHAT_DEBUG",
	} {
		t.Setenv(key, "")
	}
	// MYCHAT_API_KEY is checked with LookupEnv, so it must be truly unset.
	t.Setenv("MYCHAT_API_KEY", "")
	os.Unsetenv("MYCHAT_API_KEY")
	return home
}

func TestLoadFirstRunCreatesSettings(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(home, ".config", "mychat", "settings.toml"))
	assert.Equal(t, filepath.Join(home, ".local", "share", "mychat"), cfg.DataDir())
	assert.Equal(t, TransportStream, cfg.Transport)
	assert.Equal(t, LanguageChinese, cfg.Language)
	assert.Equal(t, defaultSaveDebounceMS*time.Millisecond, cfg.SaveDebounce)

	info, err := os.Stat(cfg.DataDir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("MYCHAT_DATA_DIR", dataDir)
	t.Setenv("MYCHAT_TRANSPORT", "Buffered")
	t.Setenv("MYCHAT_LANG", "en")
	t.Setenv("MYCHAT_SAVE_DEBOUNCE_MS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir())
	assert.Equal(t, TransportBuffered, cfg.Transport)
	assert.Equal(t, LanguageEnglish, cfg.Language)
	assert.Equal(t, time.Duration(0), cfg.SaveDebounce)
	assert.Equal(t, filepath.Join(dataDir, "conversations.db"), DatabasePath(cfg.DataDir()))
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	isolate(t)
	t.Setenv("MYCHAT_TRANSPORT", "pigeon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReadsSettingsFile(t *testing.T) {
	isolate(t)
	dataDir := t.TempDir()
	require.NoError(t, EnsureDir(GetConfigDir()))
	settings := fmt.Sprintf("data_directory = %q\ntransport = \"buffered\"\nlanguage = \"fr\"\nsave_debounce_ms = 50\n", dataDir)
	require.NoError(t, os.WriteFile(GetSettingsFilePath(), []byte(settings), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir())
	assert.Equal(t, TransportBuffered, cfg.Transport)
	assert.Equal(t, LanguageChinese, cfg.Language, "unknown language falls back to the default")
	assert.Equal(t, 50*time.Millisecond, cfg.SaveDebounce)
}

func TestAPIConfigRoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := LoadAPIConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAPIConfig(), cfg)

	cfg.Model = "llama3.1:8b"
	cfg.APIKey = ""
	cfg.Temperature = 1.1
	cfg.SystemPrompt = ""
	require.NoError(t, SaveAPIConfig(dir, cfg))

	info, err := os.Stat(UserConfigPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := LoadAPIConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadAPIConfigEnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("MYCHAT_BASE_URL", "http://gpu-box:11434/v1")
	t.Setenv("MYCHAT_API_KEY", "")
	t.Setenv("MYCHAT_MODEL", "qwen3:8b")

	got, err := LoadAPIConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434/v1", got.BaseURL)
	assert.Equal(t, "", got.APIKey)
	assert.Equal(t, "qwen3:8b", got.Model)
}

func TestLoadAPIConfigNormalizesFileValues(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	content := "[api]\nbase_url = \"\"\ntemperature = 9.5\nmax_tokens = 0\n"
	require.NoError(t, os.WriteFile(UserConfigPath(dir), []byte(content), 0600))

	got, err := LoadAPIConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultBaseURL, got.BaseURL)
	assert.Equal(t, model.MaxTemperature, got.Temperature)
	assert.Equal(t, model.DefaultMaxTokens, got.MaxTokens)
}

func TestLoadAPIConfigParseError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(UserConfigPath(dir), []byte("[api\n"), 0600))

	got, err := LoadAPIConfig(dir)
	assert.Error(t, err)
	assert.Equal(t, model.DefaultAPIConfig(), got)
}

func TestUserConfigTemplateDecodesToDefaults(t *testing.T) {
	var cfg UserConfig
	_, err := toml.Decode(GenerateUserConfigTemplate(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultAPIConfig(), cfg.API)

	var sys SystemConfig
	_, err = toml.Decode(GenerateSystemConfigTemplate(), &sys)
	require.NoError(t, err)
	assert.Equal(t, *DefaultSystemConfig(), sys)
}

func TestInitDebugLog(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	InitDebugLog(dir)
	assert.NoFileExists(t, filepath.Join(dir, "debug.log"))

	t.Setenv("MYCHAT_DEBUG", "1")
	log := InitDebugLog(dir)
	log.Debug().Msg("hello")
	t.Cleanup(func() {
		DebugLog = zerolog.Nop()
	})

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	assert.Equal(t, filepath.Join(home, "x", "y"), ExpandPath("~/x/y"))
	assert.Equal(t, "", ExpandPath(""))
}
