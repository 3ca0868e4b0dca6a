package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"mychat/model"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	modelsPath          = "/v1/models"
)

// NormalizeBaseURL strips trailing slashes and a trailing "/v1" so that the
// API paths can be appended uniformly. "http://h:11434/v1/" and
// "http://h:11434" both become "http://h:11434".
func NormalizeBaseURL(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u = strings.TrimSuffix(u, "/v1")
	return strings.TrimRight(u, "/")
}

// ChatCompletionsURL returns the completion endpoint for baseURL.
func ChatCompletionsURL(baseURL string) string {
	return NormalizeBaseURL(baseURL) + chatCompletionsPath
}

// ModelsURL returns the model listing endpoint for baseURL.
func ModelsURL(baseURL string) string {
	return NormalizeBaseURL(baseURL) + modelsPath
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// withSystemPrompt prepends the configured system prompt, if any, to history.
func withSystemPrompt(cfg model.APIConfig, history []model.Message) []model.Message {
	if cfg.SystemPrompt == "" {
		return history
	}
	out := make([]model.Message, 0, len(history)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: cfg.SystemPrompt})
	return append(out, history...)
}

func newChatRequest(cfg model.APIConfig, history []model.Message, stream bool) chatRequest {
	msgs := withSystemPrompt(cfg, history)
	wire := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return chatRequest{
		Model:       cfg.Model,
		Messages:    wire,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      stream,
	}
}

// setAuth adds the bearer token when one is configured.
func setAuth(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

// base holds what both transports share: the HTTP client and the logger.
type base struct {
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures a transport.
type Option func(*base)

// WithHTTPClient sets the client used for all requests. The default client
// has no timeout; streams end when the server finishes or the context is
// cancelled.
func WithHTTPClient(c *http.Client) Option {
	return func(b *base) {
		if c != nil {
			b.httpClient = c
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(b *base) {
		b.log = l
	}
}

func newBase(opts []Option) base {
	b := base{
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With().Str("component", "provider").Logger()
	return b
}

func (b base) newCompletionRequest(ctx context.Context, cfg model.APIConfig, history []model.Message, stream bool) (*http.Request, error) {
	body, err := json.Marshal(newChatRequest(cfg, history, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ChatCompletionsURL(cfg.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	setAuth(req.Header, cfg.APIKey)
	return req, nil
}

// TestConnection implements model.Provider.TestConnection with a GET on the
// model listing endpoint. Any failure, including a malformed base URL,
// reports false.
func (b base) TestConnection(ctx context.Context, cfg model.APIConfig) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("connection test panicked")
			ok = false
		}
	}()

	cfg = cfg.Normalize()
	url := ModelsURL(cfg.BaseURL)
	b.log.Debug().Str("url", url).Msg("testing connection")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("connection test failed")
		return false
	}
	setAuth(req.Header, cfg.APIKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.log.Error().Err(err).Msg("connection test failed")
		return false
	}
	defer resp.Body.Close()

	b.log.Debug().Int("status", resp.StatusCode).Msg("connection test result")
	return isSuccess(resp.StatusCode)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
