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


package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingBucket     = errors.New("bucket is required")
	ErrMissingKey        = errors.New("key is required")
	ErrMissingDocumentID = errors.New("document_id is required")
	ErrMissingChunks     = errors.New("no chunks or extracted_file_key provided")
	ErrMissingEmbeddings = errors.New("embeddings_file_key is required")
)

// ValidateInput checks that p carries what the given stage reads.
//
// Requirements per stage:
//   - extraction: bucket and key
//   - embeddings: bucket, document_id, and extracted_file_key or inline chunks
//   - indexing: bucket, document_id and embeddings_file_key
//   - summary: bucket and document_id
//
// Returned errors wrap ErrValidation.
func ValidateInput(stage StageName, p *Payload) error {
	if p == nil {
		return fmt.Errorf("%w: payload is nil", ErrValidation)
	}
	if p.Bucket == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingBucket)
	}

	switch stage {
	case StageExtraction:
		if p.Key == "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrMissingKey)
		}
		return nil
	case StageEmbeddings, StageIndexing, StageSummary:
	default:
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrUnknownStage, stage)
	}

	if p.DocumentID == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrMissingDocumentID)
	}
	switch stage {
	case StageEmbeddings:
		if p.ExtractedFileKey == "" && len(p.Chunks) == 0 {
			return fmt.Errorf("%w: %w", ErrValidation, ErrMissingChunks)
		}
	case StageIndexing:
		if p.EmbeddingsFileKey == "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrMissingEmbeddings)
		}
	}
	return nil
}

// ValidateChunk checks a chunk read back from an artifact or a payload.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("%w: chunk is nil", ErrValidation)
	}
	if c.ChunkID == "" {
		return fmt.Errorf("%w: chunk_id is empty", ErrValidation)
	}
	if c.Page < 1 {
		return fmt.Errorf("%w: chunk %s has page %d", ErrValidation, c.ChunkID, c.Page)
	}
	return nil
}
