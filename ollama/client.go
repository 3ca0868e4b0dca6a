// Package ollama talks to an Ollama server's native API. The chat transports
// use the OpenAI-compatible endpoints; this package covers what those
// endpoints lack, such as model sizes and the server version.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultURL  = "http://localhost:11434"
	pingTimeout = 5 * time.Second
)

type Client struct {
	client  *api.Client
	baseURL string
}

// NewClient creates a client for baseURL. A trailing "/v1" is removed so the
// same endpoint setting can be shared with the OpenAI-compatible transports.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = NativeURL(baseURL)

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		baseURL: baseURL,
	}, nil
}

// NativeURL maps an OpenAI-compatible base URL to the server root.
func NativeURL(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u = strings.TrimSuffix(u, "/v1")
	u = strings.TrimRight(u, "/")
	if u == "" {
		return DefaultURL
	}
	return u
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type ModelInfo struct {
	Name     string
	Size     int64
	Provider string
}

func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]ModelInfo, len(resp.Models))
	for i, model := range resp.Models {
		models[i] = ModelInfo{
			Name:     model.Name,
			Size:     model.Size,
			Provider: "ollama",
		}
	}

	return models, nil
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return c.client.Version(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}
