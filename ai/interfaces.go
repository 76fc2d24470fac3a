package ai

import "context"

// Embedder generates vector embeddings for text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Transport failures are wrapped with ErrUnavailable.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// Model returns the identifier recorded next to each vector.
	Model() string
}

// AIProvider aggregates the AI services a pipeline needs.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
