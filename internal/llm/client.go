// Package llm abstracts the answer-generation model behind a small client
// interface so the pipeline can run without any model configured.
package llm

import "context"

// Client generates a completion for a system instruction and user prompt.
type Client interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	// Model reports the model identifier used for generation.
	Model() string
}
