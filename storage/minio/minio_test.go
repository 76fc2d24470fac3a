package minio

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, true},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, true},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, "docs", "uploads/a.pdf")
			assert.Equal(t, tt.notFound, errors.Is(got, storage.ErrNotFound))
		})
	}
}

func TestNewBlobStore(t *testing.T) {
	_, err := NewBlobStore(Config{})
	assert.Error(t, err)

	store, err := NewBlobStore(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestBlobStore_RejectsInvalidLocation(t *testing.T) {
	store, err := NewBlobStore(Config{Endpoint: "localhost:9000"})
	require.NoError(t, err)

	_, err = store.Get(t.Context(), "", "key")
	assert.ErrorIs(t, err, storage.ErrInvalidLocation)
	assert.ErrorIs(t, store.Put(t.Context(), "docs", "", nil, ""), storage.ErrInvalidLocation)
}
