package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/dgallion1/lawsearch/internal/division"
)

// Hit is one retrieved chunk with its cosine similarity to the query.
type Hit struct {
	Chunk division.Chunk
	Score float64
}

// Index is an immutable in-memory snapshot of one division's storage. It is
// safe for concurrent use.
type Index struct {
	Label  string
	Scheme string
	Dims   int

	chunks  []division.Chunk
	vectors [][]float32
	norms   []float64
}

func (ix *Index) add(c division.Chunk, vec []float32) {
	ix.chunks = append(ix.chunks, c)
	ix.vectors = append(ix.vectors, vec)
	ix.norms = append(ix.norms, norm(vec))
}

// Len returns the number of chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks returns the indexed chunks in sequence order.
func (ix *Index) Chunks() []division.Chunk {
	out := make([]division.Chunk, len(ix.chunks))
	copy(out, ix.chunks)
	return out
}

// Search returns the k chunks most similar to query, best first. Equal
// scores keep sequence order.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(ix.chunks) == 0 {
		return nil, nil
	}
	if len(query) != ix.Dims {
		return nil, fmt.Errorf("%w: query has %d dims, index %q has %d", ErrSchemeMismatch, len(query), ix.Label, ix.Dims)
	}

	qn := norm(query)
	hits := make([]Hit, len(ix.chunks))
	for i, vec := range ix.vectors {
		hits[i] = Hit{Chunk: ix.chunks[i], Score: cosine(query, qn, vec, ix.norms[i])}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
