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


// Package pipeline implements the document processing stages.
//
// Each stage reads its input from a core.Payload and the storage domain,
// writes one JSON artifact keyed by (stage, document_id), and returns a copy
// of its input with its own fields added:
//   - ExtractStage: PDF bytes to page chunks (extracted/)
//   - EmbedStage: chunks to vectors, one provider call per chunk (embeddings/)
//   - IndexStage: vectors to index records, upserted when a backend is set (indexed/)
//   - SummaryStage: the terminal lineage record (summaries/)
//
// Stages are stateless per document and never retry a capability call;
// retry belongs to the coordinator. Failures are returned as *core.StageError
// so callers can tell validation, precondition and capability failures
// apart. A chunk that fails to embed is logged and recorded in the
// artifact's failed_chunks list without failing the stage.
package pipeline
