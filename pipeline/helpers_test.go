package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pdftext"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/require"
)

const testBucket = "docs"

var fixedTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// testExtractor implements pdftext.Extractor for testing
type testExtractor struct {
	pages    []string
	metadata core.DocumentMetadata
	err      error
}

func (e *testExtractor) Extract(ctx context.Context, data []byte) (*pdftext.Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &pdftext.Document{Pages: e.pages, Metadata: e.metadata}, nil
}

// testIndexer implements index.Indexer for testing
type testIndexer struct {
	mu       sync.Mutex
	err      error
	upserted map[string][]core.IndexRecord
	calls    int
}

func (ix *testIndexer) Upsert(ctx context.Context, name string, records []core.IndexRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.calls++
	if ix.err != nil {
		return ix.err
	}
	if ix.upserted == nil {
		ix.upserted = map[string][]core.IndexRecord{}
	}
	ix.upserted[name] = append(ix.upserted[name], records...)
	return nil
}

func (ix *testIndexer) Close() error { return nil }

func newTestStore(t *testing.T) storage.BlobStore {
	t.Helper()
	blobs, _, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return blobs
}

func testOptions(extra ...Option) []Option {
	opts := []Option{
		WithClock(func() time.Time { return fixedTime }),
		WithPoolSize(4),
		WithCallTimeout(5 * time.Second),
	}
	return append(opts, extra...)
}

// fivePages yields one chunk per page, page_1_chunk_1 .. page_5_chunk_1.
func fivePages() []string {
	return []string{"page one.", "page two.", "page three.", "page four.", "page five."}
}

func putUpload(t *testing.T, store storage.BlobStore, key string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), testBucket, key, []byte("%PDF-1.4 test"), "application/pdf"))
}

func failOn(text string, err error) func(context.Context, string) ([]float32, error) {
	return func(ctx context.Context, t string) ([]float32, error) {
		if t == text {
			return nil, err
		}
		return mock.GenerateDeterministicVector(t, 8), nil
	}
}

func exists(t *testing.T, store storage.BlobStore, key string) bool {
	t.Helper()
	_, err := store.Get(context.Background(), testBucket, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func readJSON[T any](t *testing.T, store storage.BlobStore, key string) T {
	t.Helper()
	var v T
	require.NoError(t, storage.ReadJSON(context.Background(), store, testBucket, key, &v), fmt.Sprintf("reading %s", key))
	return v
}
