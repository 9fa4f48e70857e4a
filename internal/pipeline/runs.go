package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the state of an ingest run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusScanning  RunStatus = "scanning"
	StatusIndexing  RunStatus = "indexing"
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial"
	StatusFailed    RunStatus = "failed"
)

// Run tracks one reingest of the document store.
type Run struct {
	mu sync.Mutex

	ID             string
	EmbeddingModel string
	ClearExisting  bool

	Status    RunStatus
	Phase     string
	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	documents []DocumentReport
	divisions []DivisionReport
	errors    []string
}

// DocumentReport describes one parsed source file.
type DocumentReport struct {
	Source      string `json:"source"`
	ContentHash string `json:"content_hash"`
	Segments    int    `json:"segments"`
	Skipped     int    `json:"skipped"`
}

// DivisionReport describes one rebuilt division index.
type DivisionReport struct {
	Label  string `json:"label"`
	Store  string `json:"store"`
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
	Tokens int    `json:"estimated_tokens"`
	Error  string `json:"error,omitempty"`
}

// NewRun creates a queued run with a fresh ID.
func NewRun(embeddingModel string, clearExisting bool) *Run {
	now := time.Now()
	return &Run{
		ID:             uuid.NewString(),
		EmbeddingModel: embeddingModel,
		ClearExisting:  clearExisting,
		Status:         StatusQueued,
		Phase:          "queued",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// Cleanup removes finished runs older than the TTL.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		run.mu.Lock()
		expired := !run.EndedAt.IsZero() && now.Sub(run.UpdatedAt) > s.ttl
		run.mu.Unlock()
		if expired {
			delete(s.runs, id)
		}
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status RunStatus, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if r.StartedAt.IsZero() && status != StatusQueued {
		r.StartedAt = now
	}
	switch status {
	case StatusCompleted, StatusPartial, StatusFailed:
		r.EndedAt = now
	}
	r.Status = status
	r.Phase = phase
	r.UpdatedAt = now
}

// AddError records a run-level error.
func (r *Run) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
	r.UpdatedAt = time.Now()
}

// AddDocument records a parsed source file.
func (r *Run) AddDocument(d DocumentReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents = append(r.documents, d)
	r.UpdatedAt = time.Now()
}

// AddDivision records the outcome of one division rebuild.
func (r *Run) AddDivision(d DivisionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.divisions = append(r.divisions, d)
	if d.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("%s: %s", d.Label, d.Error))
	}
	r.UpdatedAt = time.Now()
}

// Finish sets the terminal status from the recorded outcomes.
func (r *Run) Finish() {
	r.mu.Lock()
	ok, failed := 0, 0
	for _, d := range r.divisions {
		if d.Error == "" {
			ok++
		} else {
			failed++
		}
	}
	runErrs := len(r.errors) - failed
	r.mu.Unlock()

	switch {
	case failed == 0 && runErrs == 0:
		r.SetStatus(StatusCompleted, "done")
	case ok > 0:
		r.SetStatus(StatusPartial, "done")
	default:
		r.SetStatus(StatusFailed, "done")
	}
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID                 string           `json:"run_id"`
	Status             RunStatus        `json:"status"`
	Phase              string           `json:"phase"`
	EmbeddingModel     string           `json:"embedding_model"`
	ClearExisting      bool             `json:"clear_existing"`
	DivisionsProcessed int              `json:"divisions_processed"`
	ProcessingTime     float64          `json:"processing_time"`
	Documents          []DocumentReport `json:"documents"`
	Divisions          []DivisionReport `json:"divisions"`
	Errors             []string         `json:"errors"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	processed := 0
	for _, d := range r.divisions {
		if d.Error == "" {
			processed++
		}
	}
	var elapsed time.Duration
	switch {
	case r.StartedAt.IsZero():
	case r.EndedAt.IsZero():
		elapsed = time.Since(r.StartedAt)
	default:
		elapsed = r.EndedAt.Sub(r.StartedAt)
	}

	snap := RunSnapshot{
		ID:                 r.ID,
		Status:             r.Status,
		Phase:              r.Phase,
		EmbeddingModel:     r.EmbeddingModel,
		ClearExisting:      r.ClearExisting,
		DivisionsProcessed: processed,
		ProcessingTime:     elapsed.Seconds(),
		Documents:          append([]DocumentReport{}, r.documents...),
		Divisions:          append([]DivisionReport{}, r.divisions...),
		Errors:             append([]string{}, r.errors...),
		CreatedAt:          r.CreatedAt,
	}
	return snap
}

// Done reports whether the run reached a terminal status.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.EndedAt.IsZero()
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
