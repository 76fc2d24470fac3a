package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/storage"
)

// BlobStore implements storage.BlobStore on BadgerDB. Content types are not
// retained.
type BlobStore struct {
	backend *Backend
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates a BlobStore over an open backend. Closing the store
// does not close the backend.
func NewBlobStore(backend *Backend) storage.BlobStore {
	return newBlobStore(backend)
}

func newBlobStore(backend *Backend) *BlobStore {
	return &BlobStore{backend: backend}
}

// Get returns the object's bytes.
func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return nil, err
	}

	var data []byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBlobKey(bucket, key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	}, false)
	return data, err
}

// Put creates or replaces an object.
func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeBlobKey(bucket, key), data); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// List returns the keys in bucket starting with prefix.
func (s *BlobStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.ValidateLocation(bucket, "x"); err != nil {
		return nil, err
	}

	var keys []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialBlobKey(bucket, prefix), true, func(stored, _ []byte) error {
			key, err := objectKeyFromBlobKey(bucket, stored)
			if err != nil {
				return err
			}
			keys = append(keys, key)
			return nil
		})
	}, false)
	return keys, err
}

// Close is a no-op; the backend is owned by the caller.
func (s *BlobStore) Close() error {
	return nil
}
