// Package query runs one question end to end: route to divisions, summarize
// each division concurrently, merge the answers.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/lawsearch/internal/policy"
	"github.com/dgallion1/lawsearch/internal/summarize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NoDivisionsAnswer is the final answer when nothing was selected.
const NoDivisionsAnswer = "No relevant divisions were found for this question."

// Router picks divisions for a question.
type Router interface {
	Route(ctx context.Context, question string) ([]string, error)
}

// Summarizer answers a question from one division.
type Summarizer interface {
	Summarize(ctx context.Context, question, label string, tier policy.Tier) (summarize.Result, error)
}

// Options bounds a run.
type Options struct {
	MaxSteps       int           // default 25
	MaxConcurrency int           // concurrent division tasks; <1 is unbounded
	Timeout        time.Duration // whole-run bound; 0 disables
}

// Request is one question.
type Request struct {
	Question  string
	Tier      policy.Tier
	Divisions []string // when non-empty, used as the selection and routing is skipped
}

// Engine executes sessions.
type Engine struct {
	router     Router
	summarizer Summarizer
	opts       Options
	log        *zap.Logger
}

func NewEngine(router Router, summarizer Summarizer, opts Options, log *zap.Logger) *Engine {
	if opts.MaxSteps == 0 {
		opts.MaxSteps = 25
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{router: router, summarizer: summarizer, opts: opts, log: log}
}

// Run drives a new session to the merged state. Division failures are
// folded into the answer; only a routing failure or the step bound is
// returned as an error.
func (e *Engine) Run(ctx context.Context, req Request) (*Session, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	s := newSession(req.Question, req.Tier, e.opts.MaxSteps)
	for s.State != StateMerged {
		var err error
		switch s.State {
		case StateNone:
			err = e.route(ctx, s, req.Divisions)
		case StateRouting:
			err = e.summarizeAll(ctx, s)
		case StateSummarizing:
			err = e.merge(s)
		default:
			err = fmt.Errorf("unexpected session state %q", s.State)
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (e *Engine) route(ctx context.Context, s *Session, filter []string) error {
	if err := s.advance(StateRouting); err != nil {
		return err
	}

	if len(filter) > 0 {
		s.Selected = dedupe(filter)
	} else {
		selected, err := e.router.Route(ctx, s.Question)
		if err != nil {
			return err
		}
		s.Selected = dedupe(selected)
	}

	e.log.Info("divisions selected",
		zap.Strings("divisions", s.Selected),
		zap.Bool("filtered", len(filter) > 0))

	if len(s.Selected) == 0 {
		if err := s.advance(StateMerged); err != nil {
			return err
		}
		s.setFinal(NoDivisionsAnswer)
	}
	return nil
}

func (e *Engine) summarizeAll(ctx context.Context, s *Session) error {
	if err := s.advance(StateSummarizing); err != nil {
		return err
	}

	results := make([]summarize.Result, len(s.Selected))
	errs := make([]error, len(s.Selected))

	var g errgroup.Group
	if e.opts.MaxConcurrency > 0 {
		g.SetLimit(e.opts.MaxConcurrency)
	}
	for i, label := range s.Selected {
		g.Go(func() error {
			start := time.Now()
			res, err := e.summarizer.Summarize(ctx, s.Question, label, s.Tier)
			if err != nil {
				e.log.Warn("division failed",
					zap.String("division", label),
					zap.Duration("elapsed", time.Since(start)),
					zap.Error(err))
				errs[i] = err
				return nil
			}
			e.log.Debug("division answered",
				zap.String("division", label),
				zap.Duration("elapsed", time.Since(start)))
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	for i, label := range s.Selected {
		if errs[i] != nil {
			s.Answers[label] = FailureMarker(label, errs[i])
			s.Failed = append(s.Failed, label)
			continue
		}
		s.Answers[label] = DivisionAnswer(label, results[i].Answer)
		s.Sources = append(s.Sources, results[i].Sources...)
		if len(results[i].Chunks) > 0 {
			s.Chunks[label] = results[i].Chunks
		}
	}
	return nil
}

func (e *Engine) merge(s *Session) error {
	if err := s.advance(StateMerged); err != nil {
		return err
	}
	parts := make([]string, 0, len(s.Selected))
	for _, label := range s.Selected {
		parts = append(parts, s.Answers[label])
	}
	s.setFinal(strings.Join(parts, "\n\n"))
	return nil
}

// DivisionAnswer formats a successful division answer.
func DivisionAnswer(label, answer string) string {
	return label + ":\n" + answer
}

// FailureMarker formats a failed division in place of its answer.
func FailureMarker(label string, err error) string {
	return fmt.Sprintf("%s:\n[division failed: %v]", label, err)
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
