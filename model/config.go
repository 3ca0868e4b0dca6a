package model

import (
	"math"
	"strings"
)

// Defaults used when a config value is missing or out of range. They match a
// stock local Ollama install.
const (
	DefaultBaseURL      = "http://localhost:11434/v1"
	DefaultAPIKey       = "ollama"
	DefaultModel        = "qwen3:0.6b"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 2048
	DefaultSystemPrompt = "你是一个有帮助的AI助手。"

	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// APIConfig describes how to reach the completion endpoint.
type APIConfig struct {
	BaseURL      string  `toml:"base_url" json:"baseUrl"`
	APIKey       string  `toml:"api_key" json:"apiKey"`
	Model        string  `toml:"model" json:"model"`
	Temperature  float64 `toml:"temperature" json:"temperature"`
	MaxTokens    int     `toml:"max_tokens" json:"maxTokens"`
	SystemPrompt string  `toml:"system_prompt" json:"systemPrompt"`
}

// DefaultAPIConfig returns the configuration used on a cold start.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:      DefaultBaseURL,
		APIKey:       DefaultAPIKey,
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Normalize returns a copy that is safe to send: temperature clamped to
// [0,2], non-positive max tokens and empty endpoint/model replaced with
// defaults. The system prompt is kept as-is; an empty prompt is valid.
func (c APIConfig) Normalize() APIConfig {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)

	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}

	switch {
	case math.IsNaN(c.Temperature):
		c.Temperature = DefaultTemperature
	case c.Temperature < MinTemperature:
		c.Temperature = MinTemperature
	case c.Temperature > MaxTemperature:
		c.Temperature = MaxTemperature
	}

	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}

	return c
}
