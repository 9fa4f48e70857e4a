package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/lawsearch/internal/apperr"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/policy"
	"github.com/dgallion1/lawsearch/internal/query"
	"github.com/dgallion1/lawsearch/internal/summarize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minQuestionLength = 3

// QueryRequest is one question from a caller.
type QueryRequest struct {
	Question        string   `json:"question"`
	Effort          string   `json:"effort,omitempty"`
	MaxResults      int      `json:"max_results,omitempty"`
	IncludeSources  *bool    `json:"include_sources,omitempty"`
	DivisionsFilter []string `json:"divisions_filter,omitempty"`
	DebugChunks     bool     `json:"debug_chunks,omitempty"`
}

// QueryResponse is the merged answer.
type QueryResponse struct {
	Answer            string              `json:"answer"`
	ProcessingTime    float64             `json:"processing_time"`
	SelectedDivisions []string            `json:"selected_divisions"`
	Sources           []summarize.Source  `json:"sources,omitempty"`
	Timestamp         time.Time           `json:"timestamp"`
	QueryID           string              `json:"query_id"`
	DebugChunks       map[string][]string `json:"debug_chunks,omitempty"`
}

// ProcessQuery validates req, runs it and shapes the response.
func (s *Service) ProcessQuery(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	start := s.now()
	queryID := NewQueryID(start)
	log := s.log.With(zap.String("query_id", queryID))

	q, tier, maxResults, err := s.validate(req)
	if err != nil {
		return QueryResponse{}, err
	}
	if avail, err := s.indices.Available(ctx); err != nil || len(avail) == 0 {
		if err == nil {
			err = index.ErrSchemeMismatch
		}
		log.Warn("no servable division index", zap.Error(err))
		return QueryResponse{}, classify(err)
	}

	_, _, engine := s.current()
	sess, err := engine.Run(ctx, query.Request{Question: q, Tier: tier, Divisions: req.DivisionsFilter})
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return QueryResponse{}, classify(err)
	}

	resp := QueryResponse{
		Answer:            sess.FinalAnswer,
		ProcessingTime:    s.now().Sub(start).Seconds(),
		SelectedDivisions: sess.Selected,
		Timestamp:         start.UTC(),
		QueryID:           queryID,
	}
	include := s.cfg.IncludeSources
	if req.IncludeSources != nil {
		include = *req.IncludeSources
	}
	if include {
		resp.Sources = sess.Sources
		if len(resp.Sources) > maxResults {
			resp.Sources = resp.Sources[:maxResults]
		}
		if resp.Sources == nil {
			resp.Sources = []summarize.Source{}
		}
	}
	if req.DebugChunks {
		resp.DebugChunks = sess.Chunks
	}

	log.Info("query answered",
		zap.String("tier", string(tier)),
		zap.Strings("divisions", sess.Selected),
		zap.Int("failed", len(sess.Failed)),
		zap.Float64("seconds", resp.ProcessingTime))
	return resp, nil
}

func (s *Service) validate(req QueryRequest) (string, policy.Tier, int, error) {
	q := strings.TrimSpace(req.Question)
	if n := utf8.RuneCountInString(q); n < minQuestionLength || n > s.cfg.MaxQuestionLength {
		return "", "", 0, apperr.Validation("question must be between %d and %d characters", minQuestionLength, s.cfg.MaxQuestionLength)
	}

	fallback, err := policy.ParseTier(s.cfg.DefaultEffort, policy.Medium)
	if err != nil {
		fallback = policy.Medium
	}
	tier, err := policy.ParseTier(req.Effort, fallback)
	if err != nil {
		return "", "", 0, apperr.Validation("effort must be one of low, medium, high (or quick, normal, long)")
	}

	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = s.cfg.DefaultMaxResults
	}
	if maxResults < 1 || maxResults > s.cfg.MaxResults {
		return "", "", 0, apperr.Validation("max_results must be between 1 and %d", s.cfg.MaxResults)
	}

	if unknown := s.vocab.Unknown(req.DivisionsFilter); len(unknown) > 0 {
		return "", "", 0, apperr.Validation("unknown divisions: %s", strings.Join(unknown, "; "))
	}
	return q, tier, maxResults, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, index.ErrNoIndices):
		return apperr.Unavailable("no division indices available; run an ingest first", err)
	case errors.Is(err, index.ErrSchemeMismatch):
		return apperr.Unavailable("no division index matches the current embedding model; run an ingest", err)
	case errors.Is(err, query.ErrStepLimitExceeded):
		return apperr.Internal("query exceeded its step limit", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Unavailable("query timed out", err)
	case errors.Is(err, context.Canceled):
		return apperr.Unavailable("query cancelled", err)
	default:
		return apperr.Unavailable("routing model unreachable", err)
	}
}

// NewQueryID returns "query_YYYYmmdd_HHMMSS_<8 hex>" for t in UTC.
func NewQueryID(t time.Time) string {
	return fmt.Sprintf("query_%s_%s", t.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}
