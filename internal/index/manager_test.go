package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = division.MustVocabulary([]division.Entry{
	{Label: "DEPARTMENT OF HOMELAND SECURITY", Store: "dhs"},
	{Label: "LEGISLATIVE BRANCH", Store: "leg"},
})

func hashEmbedder(t *testing.T, model string) embedding.Embedder {
	t.Helper()
	e, err := embedding.NewHashEmbedder(model)
	require.NoError(t, err)
	return e
}

func chunks(label string, texts ...string) []division.Chunk {
	out := make([]division.Chunk, len(texts))
	for i, s := range texts {
		out[i] = division.Chunk{Text: s, DivisionLabel: label, Sequence: i}
	}
	return out
}

func TestGetWithoutRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"), testVocab, "hash:hash-32", nil)
	_, err := m.Get(context.Background(), "LEGISLATIVE BRANCH")
	assert.ErrorIs(t, err, ErrNoIndices)

	_, err = m.Available(context.Background())
	assert.ErrorIs(t, err, ErrNoIndices)
}

func TestGetUnknownLabel(t *testing.T) {
	m := NewManager(t.TempDir(), testVocab, "hash:hash-32", nil)
	_, err := m.Get(context.Background(), "NOT A DIVISION")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestRebuildAndSearch(t *testing.T) {
	ctx := context.Background()
	e := hashEmbedder(t, "hash-64")
	m := NewManager(t.TempDir(), testVocab, e.Scheme(), nil)

	const label = "DEPARTMENT OF HOMELAND SECURITY"
	_, err := m.Get(ctx, label)
	assert.ErrorIs(t, err, ErrIndexNotFound)

	require.NoError(t, m.Rebuild(ctx, label, chunks(label,
		"Federal Emergency Management Agency disaster relief fund",
		"Coast Guard operations and support",
		"Transportation Security Administration screening",
	), e))

	ix, err := m.Get(ctx, label)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, e.Scheme(), ix.Scheme)

	q, err := e.Embed(ctx, "disaster relief fund for emergency management")
	require.NoError(t, err)
	hits, err := ix.Search(q, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Chunk.Sequence)
	assert.Equal(t, label, hits[0].Chunk.DivisionLabel)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

	again, err := m.Get(ctx, label)
	require.NoError(t, err)
	assert.Same(t, ix, again, "second Get is served from cache")

	avail, err := m.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{label}, avail)
}

func TestRebuildReplacesCachedIndex(t *testing.T) {
	ctx := context.Background()
	e := hashEmbedder(t, "hash-32")
	m := NewManager(t.TempDir(), testVocab, e.Scheme(), nil)
	const label = "LEGISLATIVE BRANCH"

	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "old text"), e))
	old, err := m.Get(ctx, label)
	require.NoError(t, err)

	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "new one", "new two"), e))
	fresh, err := m.Get(ctx, label)
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 2, fresh.Len())
	assert.Equal(t, "new one", fresh.Chunks()[0].Text)

	entries, err := os.ReadDir(m.Root())
	require.NoError(t, err)
	for _, de := range entries {
		assert.NotContains(t, de.Name(), tmpPrefix, "build dirs are cleaned up")
	}
}

func TestSchemeChangeMakesIndicesUnreachable(t *testing.T) {
	ctx := context.Background()
	small := hashEmbedder(t, "hash-32")
	large := hashEmbedder(t, "hash-64")
	m := NewManager(t.TempDir(), testVocab, small.Scheme(), nil)
	const label = "LEGISLATIVE BRANCH"

	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "Senate", "House"), small))
	_, err := m.Get(ctx, label)
	require.NoError(t, err)

	m.InvalidateAll(large.Scheme())
	_, err = m.Get(ctx, label)
	assert.ErrorIs(t, err, ErrSchemeMismatch)

	avail, err := m.Available(ctx)
	require.NoError(t, err)
	assert.Empty(t, avail)

	err = m.Rebuild(ctx, label, chunks(label, "x"), small)
	assert.ErrorIs(t, err, ErrSchemeMismatch, "old embedder is rejected")

	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "Senate", "House"), large))
	ix, err := m.Get(ctx, label)
	require.NoError(t, err)
	assert.Equal(t, 64, ix.Dims)
}

func TestSearchDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	e := hashEmbedder(t, "hash-32")
	m := NewManager(t.TempDir(), testVocab, e.Scheme(), nil)
	const label = "LEGISLATIVE BRANCH"
	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "a"), e))
	ix, err := m.Get(ctx, label)
	require.NoError(t, err)

	_, err = ix.Search(make([]float32, 8), 3)
	assert.ErrorIs(t, err, ErrSchemeMismatch)
}

func TestSearchTiesKeepSequenceOrder(t *testing.T) {
	ix := &Index{Label: "L", Dims: 2}
	for i := 0; i < 4; i++ {
		ix.add(division.Chunk{Text: fmt.Sprint(i), Sequence: i}, []float32{1, 0})
	}
	hits, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i, h := range hits {
		assert.Equal(t, i, h.Chunk.Sequence)
		assert.InDelta(t, 1.0, h.Score, 1e-9)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	e := hashEmbedder(t, "hash-32")
	m := NewManager(t.TempDir(), testVocab, e.Scheme(), nil)
	const label = "LEGISLATIVE BRANCH"
	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "a"), e))

	require.NoError(t, m.Purge())
	_, err := m.Get(ctx, label)
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestConcurrentGetDuringRebuild(t *testing.T) {
	ctx := context.Background()
	e := hashEmbedder(t, "hash-32")
	m := NewManager(t.TempDir(), testVocab, e.Scheme(), nil)
	const label = "DEPARTMENT OF HOMELAND SECURITY"
	require.NoError(t, m.Rebuild(ctx, label, chunks(label, "one", "two"), e))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				ix, err := m.Get(ctx, label)
				if err != nil {
					errs <- err
					return
				}
				if n := ix.Len(); n != 2 && n != 3 {
					errs <- fmt.Errorf("partial index with %d chunks", n)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Rebuild(ctx, label, chunks(label, "one", "two", "three"), e); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
