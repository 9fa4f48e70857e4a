package summarize

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dhs = "DEPARTMENT OF HOMELAND SECURITY"

var vocab = division.MustVocabulary([]division.Entry{{Label: dhs, Store: "dhs"}})

var models = policy.Models{
	policy.Fast:      "fast",
	policy.Balanced:  "balanced",
	policy.Reasoning: "reasoning",
	policy.Strong:    "strong",
}

// stubLLM answers map prompts with the first context line and combine
// prompts with the joined extractions.
type stubLLM struct {
	mapCalls    atomic.Int32
	reduceCalls atomic.Int32
	reduceModel atomic.Value
	failMap     bool
}

func (s *stubLLM) Complete(_ context.Context, model, prompt string) (string, error) {
	if strings.Contains(prompt, "Comprehensive Answer:") {
		s.reduceCalls.Add(1)
		s.reduceModel.Store(model)
		body := between(prompt, "Extracted Information:\n", "\n\nComprehensive Answer:")
		return "Summary:\n" + body, nil
	}
	s.mapCalls.Add(1)
	if s.failMap {
		return "", errors.New("model overloaded")
	}
	return "- " + between(prompt, "Context:\n", "\n"), nil
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	if j := strings.Index(s, end); j >= 0 {
		s = s[:j]
	}
	return s
}

func buildIndex(t *testing.T, texts ...string) (*index.Manager, embedding.Embedder) {
	t.Helper()
	e, err := embedding.NewHashEmbedder("hash-64")
	require.NoError(t, err)
	m := index.NewManager(t.TempDir(), vocab, e.Scheme(), nil)
	chunks := make([]division.Chunk, len(texts))
	for i, s := range texts {
		chunks[i] = division.Chunk{Text: s, DivisionLabel: dhs, Sequence: i}
	}
	require.NoError(t, m.Rebuild(context.Background(), dhs, chunks, e))
	return m, e
}

func TestSummarizeMapReduce(t *testing.T) {
	m, e := buildIndex(t,
		"Federal Emergency Management Agency disaster relief fund $20,261,000,000",
		"Coast Guard operations $9,000,000,000",
		"Secret Service protective operations",
	)
	llm := &stubLLM{}
	s := New(m, e, policy.NewResolver(llm, models), 2, nil)

	res, err := s.Summarize(context.Background(), "FEMA disaster relief fund?", dhs, policy.Medium)
	require.NoError(t, err)

	assert.Equal(t, int32(3), llm.mapCalls.Load(), "depth 9 retrieves every chunk")
	assert.Equal(t, int32(1), llm.reduceCalls.Load())
	assert.Equal(t, "reasoning", llm.reduceModel.Load())
	assert.Contains(t, res.Answer, "$20,261,000,000")
	require.Len(t, res.Sources, 3)
	assert.Equal(t, dhs, res.Sources[0].Division)
	assert.Contains(t, res.Sources[0].Content, "Federal Emergency Management Agency")
	for _, src := range res.Sources {
		assert.GreaterOrEqual(t, src.Score, 0.0)
		assert.LessOrEqual(t, src.Score, 1.0)
	}
	assert.Len(t, res.Chunks, 3)
}

func TestSummarizeDepthFollowsTier(t *testing.T) {
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strings.Repeat("appropriation ", i+1)
	}
	m, e := buildIndex(t, texts...)
	llm := &stubLLM{}
	s := New(m, e, policy.NewResolver(llm, models), 0, nil)

	_, err := s.Summarize(context.Background(), "appropriation", dhs, policy.Low)
	require.NoError(t, err)
	assert.Equal(t, int32(6), llm.mapCalls.Load())
}

func TestSummarizeEmptyIndex(t *testing.T) {
	m, e := buildIndex(t)
	llm := &stubLLM{}
	s := New(m, e, policy.NewResolver(llm, models), 2, nil)

	res, err := s.Summarize(context.Background(), "anything", dhs, policy.High)
	require.NoError(t, err)
	assert.Equal(t, NoPassagesAnswer, res.Answer)
	assert.Zero(t, llm.mapCalls.Load()+llm.reduceCalls.Load())
}

func TestSummarizeMapFailure(t *testing.T) {
	m, e := buildIndex(t, "one", "two")
	s := New(m, e, policy.NewResolver(&stubLLM{failMap: true}, models), 2, nil)

	_, err := s.Summarize(context.Background(), "one", dhs, policy.Low)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestSummarizeMissingIndex(t *testing.T) {
	e, err := embedding.NewHashEmbedder("hash-64")
	require.NoError(t, err)
	m := index.NewManager(t.TempDir(), vocab, e.Scheme(), nil)
	s := New(m, e, policy.NewResolver(&stubLLM{}, models), 2, nil)

	_, err = s.Summarize(context.Background(), "q", dhs, policy.Low)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("é", SnippetLimit+20)
	assert.Len(t, []rune(snippet(long)), SnippetLimit)
	assert.Equal(t, "short", snippet("short"))
	assert.Equal(t, 0.0, clamp01(-0.3))
	assert.Equal(t, 1.0, clamp01(1.2))
}
