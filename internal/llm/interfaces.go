// Package llm contains the provider clients for semantic analysis, question
// answering, and embedding generation, plus the prompt templates and response
// parsers the pipeline depends on. All outbound calls are wrapped in a
// circuit breaker and rate limited.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// All pipeline prompts use single-string completion style (not chat history).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
