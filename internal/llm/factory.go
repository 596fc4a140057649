package llm

import (
	"fmt"
	"time"
)

// Options selects and configures a provider. Provider "ollama" (the default)
// serves both completions and embeddings; "openai" uses separate chat and
// embedding endpoints.
type Options struct {
	Provider          string
	APIKey            string
	Model             string
	EmbeddingModel    string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewTextGenerator creates the TextGenerator for the configured provider.
func NewTextGenerator(opts Options) (TextGenerator, error) {
	switch opts.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:            opts.APIKey,
			Model:             opts.Model,
			BaseURL:           opts.BaseURL,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:           opts.BaseURL,
			Model:             opts.Model,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", opts.Provider)
	}
}

// NewEmbeddingGenerator creates the EmbeddingGenerator for the configured
// provider. Ollama embeds with a dedicated client so the embedding model can
// differ from the completion model.
func NewEmbeddingGenerator(opts Options) (EmbeddingGenerator, error) {
	switch opts.Provider {
	case "openai":
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:            opts.APIKey,
			Model:             opts.EmbeddingModel,
			BaseURL:           opts.BaseURL,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		}), nil
	case "ollama", "":
		model := opts.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{
			BaseURL:           opts.BaseURL,
			Model:             model,
			Timeout:           opts.Timeout,
			RequestsPerSecond: opts.RequestsPerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", opts.Provider)
	}
}
