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


// Package storage provides the storage abstraction layer for docpipe.
//
// Every pipeline stage reads its input from and writes its artifact to a
// BlobStore: a flat bucket/key object namespace. Uploads live under
// uploads/, stage artifacts under extracted/, embeddings/, indexed/ and
// summaries/. The coordinator records run history through a RunRepository.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return interface types:
//
//	store, err := badger.NewBlobStore(backend)  // returns storage.BlobStore
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Implementations
//
//   - storage/badger: local, embedded store for blobs and run records
//   - storage/minio: S3-compatible object storage for blobs
//
// Use in tests with in-memory storage:
//
//	store, runs, backend, err := badger.NewMemoryStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access from
// multiple goroutines.
package storage
