// Package policy maps an effort tier and a task to a concrete model and
// retrieval depth.
package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dgallion1/lawsearch/internal/llm"
)

// Tier is the caller-chosen quality/cost setting.
type Tier string

const (
	Low    Tier = "low"
	Medium Tier = "medium"
	High   Tier = "high"
)

// Task is the stage a model is resolved for.
type Task string

const (
	Routing       Task = "routing"
	Generation    Task = "generation"
	Summarization Task = "summarization"
)

// ModelTier names a class of model, bound to a concrete model by Models.
type ModelTier string

const (
	Fast      ModelTier = "fast"
	Balanced  ModelTier = "balanced"
	Reasoning ModelTier = "reasoning"
	Strong    ModelTier = "strong"
)

// ParseTier accepts the tier names and their quick/normal/long aliases.
// An empty string yields fallback.
func ParseTier(s string, fallback Tier) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return fallback, nil
	case "low", "quick":
		return Low, nil
	case "medium", "normal":
		return Medium, nil
	case "high", "long":
		return High, nil
	}
	return "", fmt.Errorf("unknown effort tier %q", s)
}

type row struct {
	generation    ModelTier
	summarization ModelTier
	depth         int
}

// Routing always runs on Fast and is not part of the table.
var table = map[Tier]row{
	Low:    {generation: Fast, summarization: Fast, depth: 6},
	Medium: {generation: Balanced, summarization: Reasoning, depth: 9},
	High:   {generation: Strong, summarization: Strong, depth: 15},
}

// Resolution is the outcome of one lookup.
type Resolution struct {
	ModelTier ModelTier
	Model     llm.Model
	Depth     int // retrieval depth; 0 for routing
}

// Models binds model tiers to provider model names.
type Models map[ModelTier]string

type key struct {
	tier Tier
	task Task
}

// Resolver memoizes resolutions for the lifetime of the service.
type Resolver struct {
	client llm.Client
	models Models

	mu    sync.Mutex
	cache map[key]Resolution
}

func NewResolver(client llm.Client, models Models) *Resolver {
	return &Resolver{
		client: client,
		models: models,
		cache:  make(map[key]Resolution),
	}
}

// Resolve returns the model and retrieval depth for tier and task.
func (r *Resolver) Resolve(tier Tier, task Task) (Resolution, error) {
	k := key{tier, task}

	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.cache[k]; ok {
		return res, nil
	}

	rw, ok := table[tier]
	if !ok {
		return Resolution{}, fmt.Errorf("unknown effort tier %q", tier)
	}
	var mt ModelTier
	depth := rw.depth
	switch task {
	case Routing:
		mt, depth = Fast, 0
	case Generation:
		mt = rw.generation
	case Summarization:
		mt = rw.summarization
	default:
		return Resolution{}, fmt.Errorf("unknown task %q", task)
	}
	name := r.models[mt]
	if name == "" {
		return Resolution{}, fmt.Errorf("no model configured for tier %q", mt)
	}

	res := Resolution{
		ModelTier: mt,
		Model:     llm.Model{Client: r.client, Name: name},
		Depth:     depth,
	}
	r.cache[k] = res
	return res, nil
}

// Invalidate drops every memoized resolution. It runs alongside
// index.Manager.InvalidateAll whenever the embedding scheme changes.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

func (r *Resolver) cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
