// Package embedding turns text into vectors. Every Embedder reports a scheme
// identifier; vectors from different schemes are never mixed in one index.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Embedder converts text into vectors.
type Embedder interface {
	// Scheme identifies provider and model, e.g. "openai:text-embedding-3-large".
	Scheme() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider      string // openai, genai or hash
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	RPS           float64 // request rate for HTTP providers; 0 is unlimited
}

// New builds the Embedder named by opts.Provider.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL: opts.OpenAIBaseURL,
			APIKey:  opts.OpenAIAPIKey,
			Model:   opts.Model,
			RPS:     opts.RPS,
		})
	case "genai":
		return NewGenAIEmbedder(ctx, opts.GeminiAPIKey, opts.Model)
	case "hash":
		return NewHashEmbedder(opts.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
