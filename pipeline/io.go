package pipeline

import (
	"context"
	"time"

	"github.com/poiesic/docpipe/storage"
)

// Every storage call runs under its own timeout.

func getBlob(ctx context.Context, store storage.BlobStore, timeout time.Duration, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return store.Get(ctx, bucket, key)
}

func readArtifact(ctx context.Context, store storage.BlobStore, timeout time.Duration, bucket, key string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return storage.ReadJSON(ctx, store, bucket, key, v)
}

func writeArtifact(ctx context.Context, store storage.BlobStore, timeout time.Duration, bucket, key string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return storage.WriteJSON(ctx, store, bucket, key, v)
}
