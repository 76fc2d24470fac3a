package badger

import "github.com/poiesic/docpipe/storage"

// NewMemoryStore creates an in-memory blob store and run repository for
// testing. Caller must close the backend when done.
func NewMemoryStore() (storage.BlobStore, storage.RunRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewBlobStore(backend), NewRunRepository(backend), backend, nil
}
