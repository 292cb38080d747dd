// Package llm provides the gateway clients the elicitation engine talks to:
// text generation for extraction and dialogue, and embedding generation for
// similarity search. All clients wrap their HTTP calls with circuit breaker
// protection and a shared rate limiter, and normalize transport failures into
// the gateway error taxonomy in errors.go.
package llm

import "context"

// GenerateOptions controls a single text generation call.
type GenerateOptions struct {
	MaxTokens   int     // Upper bound on completion length (0 = provider default)
	Temperature float64 // Sampling temperature
}

// TextGenerator is the interface for prompt -> completion gateways.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	Model() string
}

// EmbeddingGenerator is the interface for text -> fixed-length vector gateways.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}
