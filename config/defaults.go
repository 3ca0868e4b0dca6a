package config

import (
	"fmt"

	"mychat/model"
)

const defaultSaveDebounceMS = 300

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory:  "~/.local/share/mychat",
		Transport:      TransportStream,
		Language:       LanguageChinese,
		SaveDebounceMS: defaultSaveDebounceMS,
	}
}

func GenerateSystemConfigTemplate() string {
	return fmt.Sprintf(`# mychat System Configuration
# Location: ~/.config/mychat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where conversations and the API config are stored
data_directory = "~/.local/share/mychat"

# Completion transport: "stream" reads the reply as it is generated,
# "buffered" waits for the whole reply in one response
transport = "stream"

# Interface language: "zh" or "en"
language = "zh"

# Delay before changes are written to disk, in milliseconds (0 = immediately)
save_debounce_ms = %d
`, defaultSaveDebounceMS)
}

func GenerateUserConfigTemplate() string {
	d := model.DefaultAPIConfig()
	return fmt.Sprintf(`# mychat API Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

[api]
# OpenAI-compatible endpoint; a trailing /v1 is optional
base_url = %q

# Sent as a Bearer token; leave empty to send no Authorization header
api_key = %q

model = %q

# 0.0 - 2.0
temperature = %.1f

max_tokens = %d

# Sent before every conversation; leave empty to send none
system_prompt = %q
`, d.BaseURL, d.APIKey, d.Model, d.Temperature, d.MaxTokens, d.SystemPrompt)
}
