package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, indexer index.Indexer, embedder *mock.MockEmbedder) *Pipeline {
	t.Helper()
	store := newTestStore(t)
	putUpload(t, store, "uploads/doc.pdf")
	p, err := New(store, &testExtractor{pages: fivePages()}, embedder, indexer, testOptions()...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestPipeline_Run(t *testing.T) {
	indexer := &testIndexer{}
	p := newTestPipeline(t, indexer, mock.NewMockEmbedder().WithDimensions(8))

	out, err := p.Run(context.Background(), core.NewPayload(testBucket, "uploads/doc.pdf"))
	require.NoError(t, err)

	assert.Equal(t, core.StageSummary, out.Stage)
	assert.Equal(t, "doc", out.DocumentID)
	assert.Equal(t, "extracted/doc.json", out.ExtractedFileKey)
	assert.Equal(t, "embeddings/doc.json", out.EmbeddingsFileKey)
	assert.Equal(t, "indexed/doc.json", out.IndexedFileKey)
	assert.Equal(t, "summaries/doc.json", out.SummaryFileKey)
	assert.Equal(t, 5, out.EmbeddingsCount)
	assert.True(t, out.IndexingSuccess)
	assert.Equal(t, 1, indexer.calls)
}

func TestPipeline_RunIsIdempotent(t *testing.T) {
	indexer := &testIndexer{}
	p := newTestPipeline(t, indexer, mock.NewMockEmbedder().WithDimensions(8))
	in := core.NewPayload(testBucket, "uploads/doc.pdf")

	first, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, indexer.calls)
}

func TestPipeline_HaltsOnFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder().WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("rejected")
	})
	indexer := &testIndexer{}
	p := newTestPipeline(t, indexer, embedder)

	last, err := p.Run(context.Background(), core.NewPayload(testBucket, "uploads/doc.pdf"))
	assert.ErrorIs(t, err, core.ErrIndexingStageFailed)
	assert.ErrorIs(t, err, core.ErrNoEmbeddings)
	assert.Equal(t, core.StageEmbeddings, last.Stage, "returns the last successful payload")
	assert.Zero(t, indexer.calls)
}

func TestPipeline_Stage(t *testing.T) {
	p := newTestPipeline(t, nil, mock.NewMockEmbedder())

	names := []core.StageName{}
	for _, s := range p.Stages() {
		names = append(names, s.Name())
	}
	assert.Equal(t, core.Stages, names)

	s, err := p.Stage(core.StageIndexing)
	require.NoError(t, err)
	assert.Equal(t, core.StageIndexing, s.Name())

	_, err = p.Stage("bogus")
	assert.ErrorIs(t, err, core.ErrUnknownStage)
}
