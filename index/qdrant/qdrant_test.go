package qdrant

import (
	"errors"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("doc", "page_1_chunk_1")
	b := PointID("doc", "page_1_chunk_1")
	c := PointID("doc", "page_1_chunk_2")
	d := PointID("doc2", "page_1_chunk_1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 36)
}

func TestBuildPoints(t *testing.T) {
	records := []core.IndexRecord{
		{
			DocumentID:      "doc",
			ChunkID:         "page_2_chunk_1",
			Text:            "hello",
			Page:            2,
			CharCount:       5,
			EmbeddingVector: []float32{0.1, 0.2, 0.3},
			Timestamp:       "2024-01-01T00:00:00Z",
			Metadata:        core.IndexMetadata{TotalPages: 4, Title: "T"},
		},
	}

	points := BuildPoints(records)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, PointID("doc", "page_2_chunk_1"), p.GetId().GetUuid())
	assert.Equal(t, "hello", p.GetPayload()["text"].GetStringValue())
	assert.Equal(t, int64(2), p.GetPayload()["page"].GetIntegerValue())
	assert.Equal(t, "T", p.GetPayload()["metadata"].GetStructValue().GetFields()["title"].GetStringValue())
	assert.NotNil(t, p.GetVectors())
}

func TestClassify(t *testing.T) {
	unavailable := classify(status.Error(codes.Unavailable, "connection refused"))
	assert.True(t, errors.Is(unavailable, index.ErrUnavailable))

	invalid := classify(status.Error(codes.InvalidArgument, "wrong vector size"))
	assert.False(t, errors.Is(invalid, index.ErrUnavailable))

	plain := errors.New("x")
	assert.Equal(t, plain, classify(plain))
}
