package core

import (
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/go-crypt/x/blake2b"
)

// StageName identifies a pipeline stage. The values double as the
// pipeline_stage tag written into every artifact.
type StageName string

const (
	StageExtraction StageName = "text_extraction"
	StageEmbeddings StageName = "embeddings_generation"
	StageIndexing   StageName = "indexing"
	StageSummary    StageName = "summary"
)

// Stages lists the pipeline stages in execution order.
var Stages = []StageName{StageExtraction, StageEmbeddings, StageIndexing, StageSummary}

// Prefix returns the storage namespace holding the stage's artifacts.
func (s StageName) Prefix() string {
	switch s {
	case StageExtraction:
		return "extracted/"
	case StageEmbeddings:
		return "embeddings/"
	case StageIndexing:
		return "indexed/"
	case StageSummary:
		return "summaries/"
	}
	return ""
}

// ParseStageName accepts either the canonical stage tag or a short alias
// ("extract", "embed", "index", "summarize").
func ParseStageName(s string) (StageName, error) {
	switch strings.ToLower(s) {
	case string(StageExtraction), "extract", "extraction":
		return StageExtraction, nil
	case string(StageEmbeddings), "embed", "embeddings":
		return StageEmbeddings, nil
	case string(StageIndexing), "index":
		return StageIndexing, nil
	case string(StageSummary), "summarize", "summaries":
		return StageSummary, nil
	}
	return "", fmt.Errorf("%w: unknown stage %q", ErrValidation, s)
}

// ArtifactKey returns the object key of a stage artifact: {prefix}{document_id}.json.
func ArtifactKey(stage StageName, documentID string) string {
	return stage.Prefix() + documentID + ".json"
}

// DocumentIDFromKey derives the stable document identifier from a storage key:
// the basename without extension, restricted to URL and path safe characters.
func DocumentIDFromKey(key string) (string, error) {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	id := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return r
		}
		return '_'
	}, base)
	if strings.Trim(id, "._") == "" {
		return "", fmt.Errorf("%w: cannot derive document_id from key %q", ErrValidation, key)
	}
	return id, nil
}

// ChunkID returns the deterministic identifier of the seq-th chunk (1-based) on
// the given page (1-based).
func ChunkID(page, seq int) string {
	return fmt.Sprintf("page_%d_chunk_%d", page, seq)
}

// ContentHash returns the hex BLAKE2b-256 digest of data.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Timestamp formats t as the ISO-8601 UTC string used in artifacts.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DocumentMetadata holds the PDF information dictionary. Absent fields are
// empty strings so every key is always present in JSON.
type DocumentMetadata struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	Subject          string `json:"subject"`
	Creator          string `json:"creator"`
	Producer         string `json:"producer"`
	CreationDate     string `json:"creation_date"`
	ModificationDate string `json:"modification_date"`
}

// Chunk is a retrieval-sized span of page text.
type Chunk struct {
	Page      int    `json:"page"`
	ChunkID   string `json:"chunk_id"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
}

// EmbeddedChunk is a Chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model"`
}

// IndexMetadata is the document-level metadata attached to every IndexRecord.
type IndexMetadata struct {
	TotalPages   int    `json:"total_pages"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	CreationDate string `json:"creation_date"`
}

// IndexRecord is an EmbeddedChunk normalized for the search backend.
type IndexRecord struct {
	DocumentID      string        `json:"document_id"`
	ChunkID         string        `json:"chunk_id"`
	Text            string        `json:"text"`
	Page            int           `json:"page"`
	CharCount       int           `json:"char_count"`
	EmbeddingVector []float32     `json:"embedding_vector"`
	Timestamp       string        `json:"timestamp"`
	Metadata        IndexMetadata `json:"metadata"`
}

// ExtractionArtifact is persisted at extracted/{document_id}.json.
type ExtractionArtifact struct {
	DocumentID          string           `json:"document_id"`
	SourceBucket        string           `json:"source_bucket"`
	SourceKey           string           `json:"source_key"`
	ContentHash         string           `json:"content_hash"`
	TotalPages          int              `json:"total_pages"`
	Chunks              []Chunk          `json:"chunks"`
	Metadata            DocumentMetadata `json:"metadata"`
	ExtractionTimestamp string           `json:"extraction_timestamp"`
	PipelineStage       StageName        `json:"pipeline_stage"`
}

// EmbeddingsArtifact is persisted at embeddings/{document_id}.json.
type EmbeddingsArtifact struct {
	DocumentID          string          `json:"document_id"`
	SourceBucket        string          `json:"source_bucket"`
	SourceKey           string          `json:"source_key"`
	ExtractedFileKey    string          `json:"extracted_file_key"`
	EmbeddingsData      []EmbeddedChunk `json:"embeddings_data"`
	EmbeddingsCount     int             `json:"embeddings_count"`
	FailedChunks        []string        `json:"failed_chunks"`
	EmbeddingModel      string          `json:"embedding_model"`
	EmbeddingsTimestamp string          `json:"embeddings_timestamp"`
	PipelineStage       StageName       `json:"pipeline_stage"`
}

// IndexingArtifact is persisted at indexed/{document_id}.json.
type IndexingArtifact struct {
	DocumentID        string        `json:"document_id"`
	EmbeddingsFileKey string        `json:"embeddings_file_key"`
	IndexedDocuments  int           `json:"indexed_documents"`
	Index             string        `json:"opensearch_index"`
	IndexingSuccess   bool          `json:"indexing_success"`
	IndexingMessage   string        `json:"indexing_message"`
	Documents         []IndexRecord `json:"documents"`
	IndexingTimestamp string        `json:"indexing_timestamp"`
	PipelineStage     StageName     `json:"pipeline_stage"`
}

// SummarySource locates the original upload.
type SummarySource struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Location string `json:"location"`
}

// SummaryTimestamps collects the per-stage completion times.
type SummaryTimestamps struct {
	Extraction string `json:"extraction,omitempty"`
	Embeddings string `json:"embeddings,omitempty"`
	Indexing   string `json:"indexing,omitempty"`
	Completion string `json:"completion"`
}

// SummaryProcessing is the processing section of a ProcessingSummary.
type SummaryProcessing struct {
	Status           string            `json:"status"`
	TotalPages       int               `json:"total_pages"`
	EmbeddingsCount  int               `json:"embeddings_count"`
	IndexedDocuments int               `json:"indexed_documents"`
	Index            string            `json:"opensearch_index"`
	IndexingSuccess  bool              `json:"indexing_success"`
	Timestamps       SummaryTimestamps `json:"timestamps"`
}

// SummaryArtifacts references the upstream artifacts of a run.
type SummaryArtifacts struct {
	Extracted  string `json:"extracted"`
	Embeddings string `json:"embeddings"`
	Indexed    string `json:"indexed"`
}

// ProcessingSummary is the terminal lineage artifact, persisted at
// summaries/{document_id}.json.
type ProcessingSummary struct {
	DocumentID          string            `json:"document_id"`
	Source              SummarySource     `json:"source"`
	Processing          SummaryProcessing `json:"processing"`
	Artifacts           SummaryArtifacts  `json:"artifacts"`
	PipelineVersion     string            `json:"pipeline_version"`
	CompletionTimestamp string            `json:"completion_timestamp"`
	PipelineStage       StageName         `json:"pipeline_stage"`
}

// StatusCompleted is the only status the summary stage records.
const StatusCompleted = "completed"
