// Package summarize answers a question from one division: retrieve the
// closest chunks, extract facts from each, then combine the extractions.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/policy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NoPassagesAnswer is returned without any model call when retrieval is empty.
const NoPassagesAnswer = "No relevant passages were found in this division."

// SnippetLimit caps a source snippet, in runes.
const SnippetLimit = 500

// Indices is the read side of index.Manager.
type Indices interface {
	Get(ctx context.Context, label string) (*index.Index, error)
}

// Source is one retrieved passage backing an answer.
type Source struct {
	Division string  `json:"division"`
	Content  string  `json:"content"`
	Score    float64 `json:"relevance_score"`
}

// Result is one division's answer.
type Result struct {
	Answer  string
	Sources []Source
	Chunks  []string // full retrieved chunk texts, for debugging
}

// Summarizer runs the retrieve/map/reduce pass.
type Summarizer struct {
	indices  Indices
	embedder embedding.Embedder
	resolver *policy.Resolver
	mapLimit int
	log      *zap.Logger
}

// New creates a Summarizer. mapLimit bounds concurrent map calls; values
// below one mean unbounded.
func New(indices Indices, embedder embedding.Embedder, resolver *policy.Resolver, mapLimit int, log *zap.Logger) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{
		indices:  indices,
		embedder: embedder,
		resolver: resolver,
		mapLimit: mapLimit,
		log:      log,
	}
}

// Summarize answers question from label's index at the given tier.
func (s *Summarizer) Summarize(ctx context.Context, question, label string, tier policy.Tier) (Result, error) {
	gen, err := s.resolver.Resolve(tier, policy.Generation)
	if err != nil {
		return Result{}, err
	}
	sum, err := s.resolver.Resolve(tier, policy.Summarization)
	if err != nil {
		return Result{}, err
	}

	ix, err := s.indices.Get(ctx, label)
	if err != nil {
		return Result{}, err
	}
	qvec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}
	hits, err := ix.Search(qvec, gen.Depth)
	if err != nil {
		return Result{}, err
	}
	if len(hits) == 0 {
		return Result{Answer: NoPassagesAnswer, Sources: []Source{}}, nil
	}

	extractions := make([]string, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	if s.mapLimit > 0 {
		g.SetLimit(s.mapLimit)
	}
	for i, h := range hits {
		g.Go(func() error {
			out, err := gen.Model.Complete(gctx, BuildMapPrompt(h.Chunk.Text, question))
			if err != nil {
				return fmt.Errorf("map chunk %d: %w", h.Chunk.Sequence, err)
			}
			extractions[i] = strings.TrimSpace(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	answer, err := sum.Model.Complete(ctx, BuildCombinePrompt(strings.Join(extractions, "\n\n"), question))
	if err != nil {
		return Result{}, fmt.Errorf("reduce: %w", err)
	}

	res := Result{
		Answer:  strings.TrimSpace(answer),
		Sources: make([]Source, len(hits)),
		Chunks:  make([]string, len(hits)),
	}
	for i, h := range hits {
		res.Sources[i] = Source{
			Division: label,
			Content:  snippet(h.Chunk.Text),
			Score:    clamp01(h.Score),
		}
		res.Chunks[i] = h.Chunk.Text
	}

	s.log.Debug("division summarized",
		zap.String("division", label),
		zap.String("tier", string(tier)),
		zap.Int("chunks", len(hits)))
	return res, nil
}

func snippet(s string) string {
	rs := []rune(s)
	if len(rs) <= SnippetLimit {
		return s
	}
	return string(rs[:SnippetLimit])
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
