// Package index defines the search backend capability the indexing stage
// writes to.
package index

import (
	"context"
	"errors"

	"github.com/poiesic/docpipe/core"
)

// DefaultName is the index records are written to when none is configured.
const DefaultName = "documents"

// ErrUnavailable indicates the backend could not be reached. The indexing
// stage treats it as "prepared, not committed" rather than a failure.
var ErrUnavailable = errors.New("index backend unavailable")

// Indexer writes index records to a search backend.
type Indexer interface {
	// Upsert creates or replaces records in the named index. Records with the
	// same (document_id, chunk_id) overwrite each other.
	Upsert(ctx context.Context, index string, records []core.IndexRecord) error

	Close() error
}
