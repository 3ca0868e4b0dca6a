package provider

import (
	"context"
	"fmt"

	"mychat/model"
	"mychat/ollama"
)

// ListModels returns the models the endpoint offers. The OpenAI-compatible
// listing is tried first; if it fails, the Ollama native API is asked instead,
// which also reports model sizes.
func ListModels(ctx context.Context, cfg model.APIConfig, opts ...Option) ([]ollama.ModelInfo, error) {
	b := newBase(opts)
	cfg = cfg.Normalize()

	models, err := b.listOpenAIModels(ctx, cfg)
	if err == nil {
		return models, nil
	}
	b.log.Debug().Err(err).Msg("model listing failed, trying ollama native api")

	client, nerr := ollama.NewClient(cfg.BaseURL, b.httpClient)
	if nerr != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	models, nerr = client.ListModels(ctx)
	if nerr != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}

func (b base) listOpenAIModels(ctx context.Context, cfg model.APIConfig) ([]ollama.ModelInfo, error) {
	client := b.openAIClient(cfg)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, classifySDKError(ctx, err)
	}

	models := make([]ollama.ModelInfo, len(page.Data))
	for i, m := range page.Data {
		models[i] = ollama.ModelInfo{
			Name:     m.ID,
			Provider: m.OwnedBy,
		}
	}
	return models, nil
}
