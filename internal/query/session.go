package query

import (
	"errors"
	"fmt"

	"github.com/dgallion1/lawsearch/internal/policy"
	"github.com/dgallion1/lawsearch/internal/summarize"
)

// ErrStepLimitExceeded means a session took more transitions than allowed.
var ErrStepLimitExceeded = errors.New("orchestration step limit exceeded")

// State is a session's position in the query lifecycle.
type State string

const (
	StateNone        State = "none"
	StateRouting     State = "routing"
	StateSummarizing State = "summarizing"
	StateMerged      State = "merged"
)

// Session is the state of one question as it moves through routing,
// per-division summarization and merge.
type Session struct {
	Question string
	Tier     policy.Tier
	Selected []string
	Answers  map[string]string // keys are always a subset of Selected
	Failed   []string          // labels whose answer is a failure marker
	Sources  []summarize.Source
	Chunks   map[string][]string
	State    State
	Steps    int

	FinalAnswer string
	merged      bool
	maxSteps    int
}

func newSession(question string, tier policy.Tier, maxSteps int) *Session {
	return &Session{
		Question: question,
		Tier:     tier,
		Selected: []string{},
		Answers:  make(map[string]string),
		Chunks:   make(map[string][]string),
		State:    StateNone,
		maxSteps: maxSteps,
	}
}

// advance moves the session to next, counting the step.
func (s *Session) advance(next State) error {
	if s.maxSteps > 0 && s.Steps >= s.maxSteps {
		return fmt.Errorf("%w: %d steps, now %s -> %s", ErrStepLimitExceeded, s.Steps, s.State, next)
	}
	s.Steps++
	s.State = next
	return nil
}

func (s *Session) setFinal(answer string) {
	if s.merged {
		panic("query: final answer set twice")
	}
	s.merged = true
	s.FinalAnswer = answer
}
