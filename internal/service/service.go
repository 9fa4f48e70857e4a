// Package service is the boundary between transports and the query and
// ingest machinery. It validates requests and classifies errors with apperr.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/lawsearch/internal/chunker"
	"github.com/dgallion1/lawsearch/internal/config"
	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/llm"
	"github.com/dgallion1/lawsearch/internal/pipeline"
	"github.com/dgallion1/lawsearch/internal/policy"
	"github.com/dgallion1/lawsearch/internal/query"
	"github.com/dgallion1/lawsearch/internal/route"
	"github.com/dgallion1/lawsearch/internal/segment"
	"github.com/dgallion1/lawsearch/internal/summarize"
	"go.uber.org/zap"
)

// EmbedderFactory builds an embedder for a model name of the configured
// provider.
type EmbedderFactory func(ctx context.Context, model string) (embedding.Embedder, error)

// Deps are the collaborators of a Service.
type Deps struct {
	Config      config.Config
	Vocabulary  *division.Vocabulary
	LLM         llm.Client // raw provider client; rate limiting is added here
	NewEmbedder EmbedderFactory
	Log         *zap.Logger
}

// Service answers questions and runs ingests.
type Service struct {
	cfg         config.Config
	vocab       *division.Vocabulary
	llm         *llm.Guarded
	resolver    *policy.Resolver
	router      *route.Router
	indices     *index.Manager
	ingestor    *pipeline.Ingestor
	runs        *pipeline.Orchestrator
	newEmbedder EmbedderFactory
	log         *zap.Logger
	now         func() time.Time

	mu         sync.RWMutex
	embedder   embedding.Embedder
	embedModel string
	engine     *query.Engine

	ingestMu sync.Mutex
}

// New builds a Service with the configured embedding model.
func New(ctx context.Context, d Deps) (*Service, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Vocabulary == nil {
		d.Vocabulary = division.Default()
	}
	cfg := d.Config

	emb, err := d.NewEmbedder(ctx, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	guarded := llm.NewGuarded(d.LLM, cfg.LLMRequestsPerSecond, llm.NewStats(time.Hour), log.Named("llm"))
	resolver := policy.NewResolver(guarded, policy.Models{
		policy.Fast:      cfg.ModelFast,
		policy.Balanced:  cfg.ModelBalanced,
		policy.Reasoning: cfg.ModelReasoning,
		policy.Strong:    cfg.ModelStrong,
	})
	indices := index.NewManager(cfg.IndexDir, d.Vocabulary, emb.Scheme(), log.Named("index"))

	s := &Service{
		cfg:         cfg,
		vocab:       d.Vocabulary,
		llm:         guarded,
		resolver:    resolver,
		router:      route.New(d.Vocabulary, resolver, log.Named("route")),
		indices:     indices,
		newEmbedder: d.NewEmbedder,
		log:         log,
		now:         time.Now,
	}
	s.ingestor = pipeline.NewIngestor(pipeline.IngestConfig{
		DataDir:       cfg.DataDir,
		Chunk:         chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap},
		MaxConcurrent: cfg.MaxConcurrentIngest,
		PDFFallback:   cfg.PDFFallbackPdftotext,
	}, indices, d.Vocabulary, segment.New(time.Minute), log.Named("ingest"))
	s.runs = pipeline.NewOrchestrator(s.execute, cfg.RunTTL, 4, log.Named("runs"))
	s.setEmbedder(emb, cfg.EmbeddingModel)
	return s, nil
}

// Start begins background ingest processing.
func (s *Service) Start(ctx context.Context) { s.runs.Start(ctx) }

// Stop waits for the background worker to exit.
func (s *Service) Stop() { s.runs.Stop() }

func (s *Service) setEmbedder(emb embedding.Embedder, model string) {
	sum := summarize.New(s.indices, emb, s.resolver, s.cfg.MaxConcurrentMap, s.log.Named("summarize"))
	eng := query.NewEngine(s.router, sum, query.Options{
		MaxSteps:       s.cfg.MaxSteps,
		MaxConcurrency: s.cfg.MaxConcurrentDivisions,
		Timeout:        s.cfg.QueryTimeout,
	}, s.log.Named("query"))

	s.mu.Lock()
	s.embedder = emb
	s.embedModel = model
	s.engine = eng
	s.mu.Unlock()
}

func (s *Service) current() (embedding.Embedder, string, *query.Engine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder, s.embedModel, s.engine
}

// HealthReport is the liveness view of the index store.
type HealthReport struct {
	Status    string   `json:"status"`
	Indices   int      `json:"indices"`
	Divisions []string `json:"divisions"`
	Reason    string   `json:"reason,omitempty"`
}

// Health is unhealthy when no division index can be served.
func (s *Service) Health(ctx context.Context) HealthReport {
	avail, err := s.indices.Available(ctx)
	if err != nil {
		return HealthReport{Status: "unhealthy", Divisions: []string{}, Reason: healthReason(err)}
	}
	if len(avail) == 0 {
		return HealthReport{Status: "unhealthy", Divisions: []string{}, Reason: "no division index matches the current embedding model"}
	}
	return HealthReport{Status: "healthy", Indices: len(avail), Divisions: avail}
}

func healthReason(err error) string {
	if errors.Is(err, index.ErrNoIndices) {
		return "no vector databases found"
	}
	return err.Error()
}

// StatusReport describes the serving configuration.
type StatusReport struct {
	CurrentEmbeddingModel string   `json:"current_embedding_model"`
	EmbeddingScheme       string   `json:"embedding_scheme"`
	LLMProvider           string   `json:"llm_provider"`
	AvailableDivisions    []string `json:"available_divisions"`
	VocabularySize        int      `json:"vocabulary_size"`
	PendingIngests        int      `json:"pending_ingests"`
}

func (s *Service) Status(ctx context.Context) StatusReport {
	_, model, _ := s.current()
	avail, err := s.indices.Available(ctx)
	if err != nil {
		avail = []string{}
	}
	if avail == nil {
		avail = []string{}
	}
	return StatusReport{
		CurrentEmbeddingModel: model,
		EmbeddingScheme:       s.indices.Scheme(),
		LLMProvider:           s.cfg.LLMProvider,
		AvailableDivisions:    avail,
		VocabularySize:        s.vocab.Len(),
		PendingIngests:        s.runs.QueueDepth(),
	}
}

// Divisions returns the closed vocabulary.
func (s *Service) Divisions() []division.Entry { return s.vocab.Entries() }

// LLMStats returns rolling model-call latency statistics.
func (s *Service) LLMStats() llm.StatsSnapshot { return s.llm.Stats().Snapshot() }
