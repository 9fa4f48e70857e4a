// Package llm wraps the text-generation providers used for routing, the map
// step and the reduce step.
package llm

import "context"

// Client sends one prompt to a named model and returns the reply text.
type Client interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Model binds a Client to one model name.
type Model struct {
	Client Client
	Name   string
}

func (m Model) Complete(ctx context.Context, prompt string) (string, error) {
	return m.Client.Complete(ctx, m.Name, prompt)
}
