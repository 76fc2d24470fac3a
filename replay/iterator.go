package replay

import (
	"context"
	"slices"

	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/storage"
)

const (
	// DefaultBatchSize is the default number of uploads handled per batch
	DefaultBatchSize = 20
)

// UploadIterator iterates over the uploads in a bucket that the trigger
// accepts, in key order.
type UploadIterator struct {
	store     storage.BlobStore
	bucket    string
	trigger   coordinator.Trigger
	batchSize int
}

// NewUploadIterator creates a new upload iterator.
// batchSize: number of uploads per batch (must be > 0)
func NewUploadIterator(store storage.BlobStore, bucket string, trigger coordinator.Trigger, batchSize int) *UploadIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &UploadIterator{
		store:     store,
		bucket:    bucket,
		trigger:   trigger,
		batchSize: batchSize,
	}
}

// Events lists every matching upload.
func (it *UploadIterator) Events(ctx context.Context) ([]coordinator.Event, error) {
	keys, err := it.store.List(ctx, it.bucket, it.trigger.Prefix)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)

	events := make([]coordinator.Event, 0, len(keys))
	for _, key := range keys {
		ev := coordinator.Event{Bucket: it.bucket, Key: key}
		if it.trigger.Matches(ev) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// ForEach calls fn for each batch of uploads.
// Iteration stops on first error from fn or when all uploads are processed.
// Context cancellation is checked between batches.
func (it *UploadIterator) ForEach(ctx context.Context, fn func([]coordinator.Event) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	events, err := it.Events(ctx)
	if err != nil {
		return err
	}

	for batch := range slices.Chunk(events, it.batchSize) {
		if err := fn(batch); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}
