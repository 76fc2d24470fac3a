package core

// PayloadVersion is bumped whenever a Payload field changes meaning.
const PayloadVersion = 1

// PipelineVersion is recorded in every processing summary.
const PipelineVersion = "1.0.0"

// Payload is the record threaded between stages. Each stage returns a copy of
// its input with its own fields filled in, so a later stage's output is always
// a superset of an earlier one. JSON names follow the workflow executor's
// pass-through shape.
type Payload struct {
	Version int       `json:"payload_version"`
	Stage   StageName `json:"pipeline_stage,omitempty"`

	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// Extraction
	DocumentID       string            `json:"document_id,omitempty"`
	TotalPages       int               `json:"total_pages,omitempty"`
	Metadata         *DocumentMetadata `json:"metadata,omitempty"`
	Chunks           []Chunk           `json:"chunks,omitempty"`
	ExtractedFileKey string            `json:"extracted_file_key,omitempty"`

	// Embeddings
	EmbeddingsFileKey string `json:"embeddings_file_key,omitempty"`
	EmbeddingsCount   int    `json:"embeddings_count"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`

	// Indexing
	IndexedFileKey   string `json:"indexed_file_key,omitempty"`
	IndexedDocuments int    `json:"indexed_documents"`
	Index            string `json:"opensearch_index,omitempty"`
	IndexingSuccess  bool   `json:"success"`

	// Summary
	SummaryFileKey string `json:"summary_file_key,omitempty"`

	ProcessingTimestamp string `json:"processing_timestamp,omitempty"`
}

// NewPayload returns the initial payload for a source object.
func NewPayload(bucket, key string) *Payload {
	return &Payload{
		Version: PayloadVersion,
		Bucket:  bucket,
		Key:     key,
	}
}

// Clone returns a copy of p that shares no mutable state with it.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	out := *p
	if p.Metadata != nil {
		md := *p.Metadata
		out.Metadata = &md
	}
	if p.Chunks != nil {
		out.Chunks = append([]Chunk(nil), p.Chunks...)
	}
	return &out
}
