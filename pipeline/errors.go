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


package pipeline

import (
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

var (
	// ErrStoreRequired is returned when a blob store is not provided.
	ErrStoreRequired = errors.New("blob store required")

	// ErrExtractorRequired is returned when a PDF extractor is not provided.
	ErrExtractorRequired = errors.New("pdf extractor required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid option")
)

func stageError(stage core.StageName, kind core.ErrorKind, err error) error {
	return &core.StageError{Stage: stage, Kind: kind, Err: err}
}

// storageError classifies a storage failure: a missing object is an unmet
// precondition, a bad location is a validation error, anything else is a
// capability failure.
func storageError(stage core.StageName, op, bucket, key string, err error) error {
	kind := core.KindCapability
	switch {
	case errors.Is(err, storage.ErrNotFound):
		kind = core.KindPrecondition
	case errors.Is(err, storage.ErrInvalidLocation), errors.Is(err, storage.ErrSerializationFailed):
		kind = core.KindValidation
	}
	return stageError(stage, kind, fmt.Errorf("%s %s/%s: %w", op, bucket, key, err))
}
