package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/lawsearch/internal/chunker"
	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bill = `An Act making further consolidated appropriations.

DIVISION A--DEPARTMENT OF DEFENSE APPROPRIATIONS ACT, 2024
For military personnel, $1,000,000.

DIVISION B--LEGISLATIVE BRANCH APPROPRIATIONS ACT, 2024
For the Senate, $2,000,000.<<NOTE: Deadline.>>

DIVISION C--DEPARTMENT OF HOMELAND SECURITY APPROPRIATIONS ACT, 2024
For FEMA, $3,000,000.
`

var vocab = division.MustVocabulary([]division.Entry{
	{Label: "DEPARTMENT OF DEFENSE", Store: "bill_txt_Division_A_DEPARTMENT_OF_DEFENSE"},
	{Label: "LEGISLATIVE BRANCH", Store: "bill_txt_Division_B_LEGISLATIVE_BRANCH"},
})

func setup(t *testing.T) (*Ingestor, *index.Manager, embedding.Embedder, string) {
	t.Helper()
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "bill.txt"), []byte(bill), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.csv"), []byte("a,b"), 0o644))

	emb, err := embedding.NewHashEmbedder("hash-32")
	require.NoError(t, err)
	mgr := index.NewManager(filepath.Join(t.TempDir(), "index"), vocab, emb.Scheme(), nil)
	in := NewIngestor(IngestConfig{
		DataDir:       dataDir,
		Chunk:         chunker.Config{ChunkSize: 40, ChunkOverlap: 10},
		MaxConcurrent: 2,
	}, mgr, vocab, segment.New(time.Second), nil)
	return in, mgr, emb, dataDir
}

func TestIngestBuildsVocabularyDivisions(t *testing.T) {
	in, mgr, emb, _ := setup(t)
	ctx := context.Background()

	run := NewRun(emb.Scheme(), false)
	in.Process(ctx, run, emb)

	snap := run.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Errors)
	assert.Equal(t, 2, snap.DivisionsProcessed)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "bill.txt", snap.Documents[0].Source)
	assert.Equal(t, 3, snap.Documents[0].Segments)
	assert.Equal(t, 1, snap.Documents[0].Skipped)
	for _, d := range snap.Divisions {
		assert.Positive(t, d.Chunks)
		assert.Positive(t, d.Tokens)
	}

	avail, err := mgr.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEPARTMENT OF DEFENSE", "LEGISLATIVE BRANCH"}, avail)

	ix, err := mgr.Get(ctx, "LEGISLATIVE BRANCH")
	require.NoError(t, err)
	var joined string
	for _, c := range ix.Chunks() {
		joined += c.Text
	}
	assert.Contains(t, joined, "Senate")
	assert.NotContains(t, joined, "<<NOTE")
	assert.NotContains(t, joined, "FEMA")
}

func TestIngestIsolatesDivisionFailure(t *testing.T) {
	in, _, _, _ := setup(t)
	other, err := embedding.NewHashEmbedder("hash-64")
	require.NoError(t, err)

	// An embedder of another scheme is rejected by every rebuild.
	run := NewRun(other.Scheme(), false)
	in.Process(context.Background(), run, other)
	snap := run.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Len(t, snap.Errors, 2)
}

func TestIngestMissingDataDir(t *testing.T) {
	in, _, emb, dataDir := setup(t)
	require.NoError(t, os.RemoveAll(dataDir))

	run := NewRun(emb.Scheme(), false)
	in.Process(context.Background(), run, emb)
	snap := run.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "scanning", snap.Phase)
	assert.NotEmpty(t, snap.Errors)
}

func TestIngestClearExisting(t *testing.T) {
	in, mgr, emb, dataDir := setup(t)
	ctx := context.Background()
	in.Process(ctx, NewRun(emb.Scheme(), false), emb)

	// Drop division B from the source, then reingest with clear.
	trimmed := bill[:len("An Act making further consolidated appropriations.\n\nDIVISION A--DEPARTMENT OF DEFENSE APPROPRIATIONS ACT, 2024\nFor military personnel, $1,000,000.\n")]
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "bill.txt"), []byte(trimmed), 0o644))

	run := NewRun(emb.Scheme(), true)
	in.Process(ctx, run, emb)
	assert.Equal(t, StatusCompleted, run.Snapshot().Status)

	_, err := mgr.Get(ctx, "LEGISLATIVE BRANCH")
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
	_, err = mgr.Get(ctx, "DEPARTMENT OF DEFENSE")
	assert.NoError(t, err)
}
