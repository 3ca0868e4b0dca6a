package provider

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"mychat/model"
)

// BufferedProvider implements model.Provider with a single non-streaming
// completion. It always yields exactly one delta holding the full reply, so
// callers see no progress until the response has arrived. Use it only where
// incremental reads are not available.
type BufferedProvider struct {
	base
}

// NewBufferedProvider creates the one-shot transport.
func NewBufferedProvider(opts ...Option) *BufferedProvider {
	return &BufferedProvider{base: newBase(opts)}
}

// Stream implements model.Provider.Stream.
func (p *BufferedProvider) Stream(ctx context.Context, cfg model.APIConfig, history []model.Message) (model.DeltaStream, error) {
	cfg = cfg.Normalize()
	client := p.openAIClient(cfg)

	params := openai.ChatCompletionNewParams{
		Messages:    ConvertToOpenAIMessages(withSystemPrompt(cfg, history)),
		Model:       openai.ChatModel(cfg.Model),
		Temperature: openai.Float(cfg.Temperature),
		MaxTokens:   openai.Int(int64(cfg.MaxTokens)),
	}

	p.log.Debug().
		Str("url", ChatCompletionsURL(cfg.BaseURL)).
		Str("model", cfg.Model).
		Int("messages", len(history)).
		Msg("requesting buffered completion")

	completion, err := client.Chat.Completions.New(ctx, params, option.WithJSONSet("stream", false))
	if err != nil {
		return nil, classifySDKError(ctx, err)
	}

	content := ""
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}
	return NewStaticStream(content), nil
}

// openAIClient builds an SDK client for one request. Retries are disabled and
// the Authorization header is set only when a key is configured, overriding
// anything the SDK picks up from the environment.
func (b base) openAIClient(cfg model.APIConfig) openai.Client {
	opts := []option.RequestOption{
		option.WithBaseURL(NormalizeBaseURL(cfg.BaseURL) + "/v1/"),
		option.WithHTTPClient(b.httpClient),
		option.WithMaxRetries(0),
		option.WithMiddleware(statusMiddleware),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else {
		opts = append(opts, option.WithHeaderDel("Authorization"))
	}
	return openai.NewClient(opts...)
}

// statusMiddleware turns non-success responses into *RequestError carrying
// the raw body text.
func statusMiddleware(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
	resp, err := next(req)
	if err != nil {
		return resp, err
	}
	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func classifySDKError(ctx context.Context, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &RequestError{StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
	}
	return wrapTransport(ctx, "POST "+chatCompletionsPath, err)
}
