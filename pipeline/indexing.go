package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/index"
	"github.com/poiesic/docpipe/storage"
)

const (
	msgIndexed          = "documents upserted into index"
	msgNoIndexer        = "documents prepared; no index backend configured"
	msgIndexUnavailable = "documents prepared; index backend unavailable"
)

// IndexStage turns embedded chunks into index records and upserts them.
type IndexStage struct {
	store   storage.BlobStore
	indexer index.Indexer
	cfg     *settings
	logger  *slog.Logger
}

var _ Stage = (*IndexStage)(nil)

// NewIndexStage creates the indexing stage. A nil indexer puts the stage in
// prepared mode: records are built and persisted but never upserted.
func NewIndexStage(store storage.BlobStore, indexer index.Indexer, opts ...Option) (*IndexStage, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &IndexStage{
		store:   store,
		indexer: indexer,
		cfg:     cfg,
		logger:  cfg.logger.With("stage", core.StageIndexing),
	}, nil
}

func (s *IndexStage) Name() core.StageName {
	return core.StageIndexing
}

// Run indexes the embeddings referenced by in.EmbeddingsFileKey.
func (s *IndexStage) Run(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	if err := core.ValidateInput(core.StageIndexing, in); err != nil {
		return nil, stageError(core.StageIndexing, core.KindValidation, err)
	}
	logger := s.logger.With("document_id", in.DocumentID)

	var embeddings core.EmbeddingsArtifact
	if err := readArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, in.EmbeddingsFileKey, &embeddings); err != nil {
		return nil, storageError(core.StageIndexing, "reading", in.Bucket, in.EmbeddingsFileKey, err)
	}
	if len(embeddings.EmbeddingsData) == 0 {
		return nil, stageError(core.StageIndexing, core.KindPrecondition, core.ErrNoEmbeddings)
	}

	totalPages, md := s.documentInfo(ctx, in, embeddings.ExtractedFileKey)
	now := core.Timestamp(s.cfg.now())
	records := BuildRecords(in.DocumentID, embeddings.EmbeddingsData, totalPages, md, now)

	success, message, err := s.upsert(ctx, records)
	if err != nil {
		logger.Error("failed to upsert records", "index", s.cfg.indexName, "err", err)
		return nil, stageError(core.StageIndexing, core.KindCapability, err)
	}
	if !success {
		logger.Warn("index not committed", "reason", message)
	}

	artifactKey := core.ArtifactKey(core.StageIndexing, in.DocumentID)
	artifact := &core.IndexingArtifact{
		DocumentID:        in.DocumentID,
		EmbeddingsFileKey: in.EmbeddingsFileKey,
		IndexedDocuments:  len(records),
		Index:             s.cfg.indexName,
		IndexingSuccess:   success,
		IndexingMessage:   message,
		Documents:         records,
		IndexingTimestamp: now,
		PipelineStage:     core.StageIndexing,
	}
	if err := writeArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, artifactKey, artifact); err != nil {
		return nil, storageError(core.StageIndexing, "writing", in.Bucket, artifactKey, err)
	}
	logger.Info("indexed documents", "count", len(records), "index", s.cfg.indexName, "success", success)

	out := in.Clone()
	out.Stage = core.StageIndexing
	out.IndexedFileKey = artifactKey
	out.IndexedDocuments = len(records)
	out.Index = s.cfg.indexName
	out.IndexingSuccess = success
	out.ProcessingTimestamp = now
	return out, nil
}

func (s *IndexStage) upsert(ctx context.Context, records []core.IndexRecord) (bool, string, error) {
	if s.indexer == nil {
		return false, msgNoIndexer, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout)
	defer cancel()

	err := s.indexer.Upsert(callCtx, s.cfg.indexName, records)
	switch {
	case err == nil:
		return true, msgIndexed, nil
	case errors.Is(err, index.ErrUnavailable):
		return false, fmt.Sprintf("%s: %v", msgIndexUnavailable, err), nil
	default:
		return false, "", fmt.Errorf("upserting into %s: %w", s.cfg.indexName, err)
	}
}

// documentInfo returns the page count and metadata for the records. The
// payload wins; the extraction artifact is consulted when a replayed payload
// lacks them. A missing artifact leaves the fields empty.
func (s *IndexStage) documentInfo(ctx context.Context, in *core.Payload, extractedKey string) (int, core.DocumentMetadata) {
	if in.Metadata != nil {
		return in.TotalPages, *in.Metadata
	}
	if extractedKey == "" {
		extractedKey = in.ExtractedFileKey
	}
	if extractedKey == "" {
		return in.TotalPages, core.DocumentMetadata{}
	}
	var extracted core.ExtractionArtifact
	if err := readArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, extractedKey, &extracted); err != nil {
		s.logger.Debug("no extraction metadata", "key", extractedKey, "err", err)
		return in.TotalPages, core.DocumentMetadata{}
	}
	return extracted.TotalPages, extracted.Metadata
}

// BuildRecords converts embedded chunks into index records stamped with ts.
func BuildRecords(documentID string, chunks []core.EmbeddedChunk, totalPages int, md core.DocumentMetadata, ts string) []core.IndexRecord {
	records := make([]core.IndexRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, core.IndexRecord{
			DocumentID:      documentID,
			ChunkID:         c.ChunkID,
			Text:            c.Text,
			Page:            c.Page,
			CharCount:       c.CharCount,
			EmbeddingVector: c.Embedding,
			Timestamp:       ts,
			Metadata: core.IndexMetadata{
				TotalPages:   totalPages,
				Title:        md.Title,
				Author:       md.Author,
				CreationDate: md.CreationDate,
			},
		})
	}
	return records
}
