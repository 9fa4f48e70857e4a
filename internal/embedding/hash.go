package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, offline bag-of-words embedder using the
// hashing trick. Useful for local runs and tests; it has no semantic power.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder parses model names of the form "hash-<dims>".
func NewHashEmbedder(model string) (*HashEmbedder, error) {
	dims := 256
	if model != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(model, "hash-"))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid hash embedding model %q", model)
		}
		dims = n
	}
	return &HashEmbedder{dims: dims}, nil
}

func (e *HashEmbedder) Scheme() string { return fmt.Sprintf("hash:hash-%d", e.dims) }

func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dims)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		v[int(sum>>1)%e.dims] += sign
	}
	return Normalize(v), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
