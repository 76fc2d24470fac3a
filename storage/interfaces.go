// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"

	"github.com/poiesic/docpipe/core"
)

// BlobStore reads and writes whole objects by bucket and key.
// Implementations must be thread-safe and support concurrent access.
type BlobStore interface {
	// Get returns the object's bytes. Returns ErrNotFound if the object does
	// not exist.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put creates or replaces an object.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error

	// List returns the keys in bucket starting with prefix, in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

// RunRepository persists coordinator run records.
type RunRepository interface {
	// SaveRun creates or replaces the record with the same ExecutionID.
	SaveRun(ctx context.Context, run *core.RunRecord) error

	// GetRun returns ErrNotFound if no run has the given execution id.
	GetRun(ctx context.Context, executionID string) (*core.RunRecord, error)

	// ListRuns returns the runs of one document, or of all documents when
	// documentID is empty, oldest first.
	ListRuns(ctx context.Context, documentID string) ([]*core.RunRecord, error)

	Close() error
}
