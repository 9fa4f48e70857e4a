package service

import (
	"context"
	"strings"

	"github.com/dgallion1/lawsearch/internal/apperr"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/pipeline"
	"go.uber.org/zap"
)

// IngestRequest asks for a rebuild of every division index.
type IngestRequest struct {
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ClearExisting  bool   `json:"clear_existing,omitempty"`
	Async          bool   `json:"async,omitempty"`
}

// IngestResponse summarizes a finished or queued run.
type IngestResponse struct {
	Status             string   `json:"status"`
	DivisionsProcessed int      `json:"divisions_processed"`
	ProcessingTime     float64  `json:"processing_time"`
	RunID              string   `json:"run_id"`
	Errors             []string `json:"errors"`
}

// Reingest rebuilds the indices from the data directory. A model different
// from the current one switches the embedding scheme, which makes every
// existing index unreachable until it is rebuilt.
func (s *Service) Reingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	model := strings.TrimSpace(req.EmbeddingModel)
	if _, err := s.embedderFor(ctx, model); err != nil {
		return IngestResponse{}, apperr.Validation("embedding model %q: %v", model, err)
	}
	if model == "" {
		_, model, _ = s.current()
	}
	run := pipeline.NewRun(model, req.ClearExisting)

	if req.Async {
		queued := run.Snapshot()
		if err := s.runs.Submit(run); err != nil {
			return IngestResponse{}, apperr.Unavailable(err.Error(), err)
		}
		return toResponse(queued), nil
	}

	s.runs.Track(run)
	s.execute(ctx, run)
	snap := run.Snapshot()
	resp := toResponse(snap)
	if snap.Status == pipeline.StatusFailed {
		return resp, apperr.Internal("ingest failed: "+strings.Join(snap.Errors, "; "), nil)
	}
	return resp, nil
}

// Run returns the snapshot of an ingest run.
func (s *Service) Run(id string) (pipeline.RunSnapshot, bool) {
	run := s.runs.GetRun(id)
	if run == nil {
		return pipeline.RunSnapshot{}, false
	}
	return run.Snapshot(), true
}

// execute performs a run. Runs are serialized; a scheme switch happens
// under the same lock so no two ingests race on it.
func (s *Service) execute(ctx context.Context, run *pipeline.Run) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	emb, err := s.embedderFor(ctx, run.EmbeddingModel)
	if err != nil {
		run.AddError(err.Error())
		run.SetStatus(pipeline.StatusFailed, "embedder")
		return
	}

	if emb.Scheme() != s.indices.Scheme() {
		s.log.Info("embedding scheme changed",
			zap.String("from", s.indices.Scheme()),
			zap.String("to", emb.Scheme()))
		s.indices.InvalidateAll(emb.Scheme())
		s.resolver.Invalidate()
		s.setEmbedder(emb, run.EmbeddingModel)
	}

	s.ingestor.Process(ctx, run, emb)
}

// embedderFor returns the current embedder when model is empty or unchanged.
func (s *Service) embedderFor(ctx context.Context, model string) (embedding.Embedder, error) {
	emb, current, _ := s.current()
	if model == "" || model == current {
		return emb, nil
	}
	return s.newEmbedder(ctx, model)
}

func toResponse(snap pipeline.RunSnapshot) IngestResponse {
	return IngestResponse{
		Status:             string(snap.Status),
		DivisionsProcessed: snap.DivisionsProcessed,
		ProcessingTime:     snap.ProcessingTime,
		RunID:              snap.ID,
		Errors:             snap.Errors,
	}
}
