// Package ollama implements ai.AIProvider with Ollama's native embeddings
// API.
package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/poiesic/docpipe/ai"
)

// keepAlive keeps the model loaded between chunks of the same document.
const keepAlive = 30 * time.Minute

// Embedder implements ai.Embedder using an Ollama server.
type Embedder struct {
	client *api.Client
	model  string
	logger *slog.Logger
}

// Provider implements ai.AIProvider for Ollama.
type Provider struct {
	embedder *Embedder
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(config.Host)
	if err != nil {
		return nil, fmt.Errorf("ai config: invalid Host %q: %w", config.Host, err)
	}

	return &Embedder{
		client: api.NewClient(base, http.DefaultClient),
		model:  config.Model,
		logger: slog.Default().With("component", "ollama-embedder"),
	}, nil
}

// NewProvider creates an Ollama-backed provider.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{embedder: embedder}, nil
}

// NewEmbedder creates an Ollama embedder.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close is a no-op; the HTTP client is shared.
func (p *Provider) Close() error {
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:     e.model,
		Prompt:    text,
		KeepAlive: &api.Duration{Duration: keepAlive},
	})
	if err != nil {
		e.logger.Error("failed to generate embedding", "length", len(text), "err", err)
		return nil, ai.WrapTransportError(err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: model %s", ai.ErrEmptyEmbedding, e.model)
	}
	return ai.Float64sToFloat32s(resp.Embedding), nil
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	return e.model
}
