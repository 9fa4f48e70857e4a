package service

import (
	"context"
	"fmt"

	"github.com/dgallion1/lawsearch/internal/config"
	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/llm"
	"go.uber.org/zap"
)

// FromConfig wires the configured providers into a Service.
func FromConfig(ctx context.Context, cfg config.Config, vocab *division.Vocabulary, log *zap.Logger) (*Service, error) {
	client, err := NewLLMClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(ctx, Deps{
		Config:      cfg,
		Vocabulary:  vocab,
		LLM:         client,
		NewEmbedder: EmbedderFromConfig(cfg),
		Log:         log,
	})
}

// NewLLMClient builds the generation client named by LLM_PROVIDER.
func NewLLMClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey), nil
	case "genai":
		return llm.NewGenAIClient(ctx, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// EmbedderFromConfig returns a factory for the configured embedding provider.
func EmbedderFromConfig(cfg config.Config) EmbedderFactory {
	return func(ctx context.Context, model string) (embedding.Embedder, error) {
		if model == "" {
			model = cfg.EmbeddingModel
		}
		return embedding.New(ctx, embedding.Options{
			Provider:      cfg.EmbeddingProvider,
			Model:         model,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
			GeminiAPIKey:  cfg.GeminiAPIKey,
			RPS:           cfg.EmbeddingRequestsPerSecond,
		})
	}
}
