package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/poiesic/docpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req api.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		_ = json.NewEncoder(w).Encode(api.EmbeddingResponse{Embedding: []float64{0.25, -0.5}})
	}))
	defer srv.Close()

	provider, err := NewProvider(ai.NewConfig(
		ai.WithProvider(ai.ProviderOllama),
		ai.WithHost(srv.URL+"/v1"),
		ai.WithModel("nomic-embed-text"),
	))
	require.NoError(t, err)
	defer provider.Close()

	v, err := provider.Embedder().EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, v)
	assert.Equal(t, "nomic-embed-text", provider.Embedder().Model())
}

func TestEmbedText_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e, err := NewEmbedder(ai.NewConfig(ai.WithProvider(ai.ProviderOllama), ai.WithHost(url), ai.WithModel("m")))
	require.NoError(t, err)

	_, err = e.EmbedText(context.Background(), "hello")
	assert.True(t, errors.Is(err, ai.ErrUnavailable), "got %v", err)
}

func TestEmbedText_EmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.EmbeddingResponse{})
	}))
	defer srv.Close()

	e, err := NewEmbedder(ai.NewConfig(ai.WithProvider(ai.ProviderOllama), ai.WithHost(srv.URL), ai.WithModel("m")))
	require.NoError(t, err)

	_, err = e.EmbedText(context.Background(), "hello")
	assert.ErrorIs(t, err, ai.ErrEmptyEmbedding)
	assert.False(t, errors.Is(err, ai.ErrUnavailable))
}
