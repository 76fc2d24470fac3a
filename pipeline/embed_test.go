package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extracted runs the extraction stage over fivePages and returns its output.
func extracted(t *testing.T, store storage.BlobStore) *core.Payload {
	t.Helper()
	putUpload(t, store, "uploads/doc.pdf")
	stage, err := NewExtractStage(store, &testExtractor{pages: fivePages()}, testOptions()...)
	require.NoError(t, err)
	out, err := stage.Run(context.Background(), core.NewPayload(testBucket, "uploads/doc.pdf"))
	require.NoError(t, err)
	return out
}

func newEmbedStage(t *testing.T, store storage.BlobStore, embedder ai.Embedder, opts ...Option) *EmbedStage {
	t.Helper()
	stage, err := NewEmbedStage(store, embedder, testOptions(opts...)...)
	require.NoError(t, err)
	t.Cleanup(stage.Release)
	return stage
}

func TestEmbedStage_Run(t *testing.T) {
	store := newTestStore(t)
	in := extracted(t, store)

	embedder := mock.NewMockEmbedder().WithDimensions(16)
	stage := newEmbedStage(t, store, embedder)

	out, err := stage.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "embeddings/doc.json", out.EmbeddingsFileKey)
	assert.Equal(t, 5, out.EmbeddingsCount)
	assert.Equal(t, mock.DefaultModel, out.EmbeddingModel)
	assert.Equal(t, in.ExtractedFileKey, out.ExtractedFileKey)
	assert.Equal(t, in.DocumentID, out.DocumentID)
	assert.Equal(t, 5, embedder.CallCount())

	artifact := readJSON[core.EmbeddingsArtifact](t, store, "embeddings/doc.json")
	assert.Equal(t, core.StageEmbeddings, artifact.PipelineStage)
	assert.Equal(t, "uploads/doc.pdf", artifact.SourceKey)
	assert.Empty(t, artifact.FailedChunks)
	require.Len(t, artifact.EmbeddingsData, 5)
	for i, ec := range artifact.EmbeddingsData {
		assert.Equal(t, core.ChunkID(i+1, 1), ec.ChunkID, "order preserved")
		assert.Len(t, ec.Embedding, 16)
		assert.Equal(t, mock.GenerateDeterministicVector(ec.Text, 16), ec.Embedding)
	}
}

func TestEmbedStage_PartialFailure(t *testing.T) {
	store := newTestStore(t)
	in := extracted(t, store)

	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(failOn("page three.", errors.New("rate limited")))
	stage := newEmbedStage(t, store, embedder)

	out, err := stage.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 4, out.EmbeddingsCount)

	artifact := readJSON[core.EmbeddingsArtifact](t, store, out.EmbeddingsFileKey)
	assert.Equal(t, []string{"page_3_chunk_1"}, artifact.FailedChunks)
	ids := []string{}
	for _, ec := range artifact.EmbeddingsData {
		ids = append(ids, ec.ChunkID)
	}
	assert.Equal(t, []string{"page_1_chunk_1", "page_2_chunk_1", "page_4_chunk_1", "page_5_chunk_1"}, ids)
}

func TestEmbedStage_AllFailedStillSucceeds(t *testing.T) {
	store := newTestStore(t)
	in := extracted(t, store)

	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("content rejected")
	})
	stage := newEmbedStage(t, store, embedder)

	out, err := stage.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, out.EmbeddingsCount)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"embeddings_count":0`)

	artifact := readJSON[core.EmbeddingsArtifact](t, store, out.EmbeddingsFileKey)
	assert.Empty(t, artifact.EmbeddingsData)
	assert.Len(t, artifact.FailedChunks, 5)
}

func TestEmbedStage_ProviderUnavailable(t *testing.T) {
	store := newTestStore(t)
	in := extracted(t, store)

	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: connection refused", ai.ErrUnavailable)
	})
	stage := newEmbedStage(t, store, embedder)

	_, err := stage.Run(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingStageFailed)
	assert.ErrorIs(t, err, ai.ErrUnavailable)
	assert.True(t, core.IsRetryable(err))
	assert.False(t, exists(t, store, "embeddings/doc.json"))
}

func TestEmbedStage_InlineChunks(t *testing.T) {
	store := newTestStore(t)
	stage := newEmbedStage(t, store, mock.NewMockEmbedder().WithDimensions(4))

	in := &core.Payload{
		Version:    core.PayloadVersion,
		Bucket:     testBucket,
		DocumentID: "inline",
		Chunks: []core.Chunk{
			{Page: 1, ChunkID: "page_1_chunk_1", Text: "one", CharCount: 3},
			{Page: 1, ChunkID: "page_1_chunk_2", Text: "two", CharCount: 3},
		},
	}
	out, err := stage.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, out.EmbeddingsCount)
	assert.Len(t, out.Chunks, 2, "inline chunks pass through")
}

func TestEmbedStage_Failures(t *testing.T) {
	store := newTestStore(t)
	stage := newEmbedStage(t, store, mock.NewMockEmbedder())

	t.Run("missing document id", func(t *testing.T) {
		_, err := stage.Run(context.Background(), &core.Payload{Bucket: testBucket, ExtractedFileKey: "extracted/x.json"})
		assert.ErrorIs(t, err, core.ErrEmbeddingStageFailed)
		assert.ErrorIs(t, err, core.ErrMissingDocumentID)
		assert.False(t, core.IsRetryable(err))
	})

	t.Run("no chunk source", func(t *testing.T) {
		_, err := stage.Run(context.Background(), &core.Payload{Bucket: testBucket, DocumentID: "x"})
		assert.ErrorIs(t, err, core.ErrEmbeddingStageFailed)
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := stage.Run(context.Background(), &core.Payload{Bucket: testBucket, DocumentID: "x", ExtractedFileKey: "extracted/x.json"})
		assert.ErrorIs(t, err, core.ErrEmbeddingStageFailed)
		assert.ErrorIs(t, err, core.ErrPrecondition)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("empty artifact", func(t *testing.T) {
		require.NoError(t, storage.WriteJSON(context.Background(), store, testBucket, "extracted/empty.json",
			&core.ExtractionArtifact{DocumentID: "empty", Chunks: []core.Chunk{}}))
		_, err := stage.Run(context.Background(), &core.Payload{Bucket: testBucket, DocumentID: "empty", ExtractedFileKey: "extracted/empty.json"})
		assert.ErrorIs(t, err, core.ErrEmbeddingStageFailed)
		assert.ErrorIs(t, err, core.ErrMissingChunks)
	})
}
