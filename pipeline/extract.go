package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docpipe/chunker"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pdftext"
	"github.com/poiesic/docpipe/storage"
)

// ExtractStage reads an uploaded PDF and writes its chunked text.
type ExtractStage struct {
	store     storage.BlobStore
	extractor pdftext.Extractor
	cfg       *settings
	logger    *slog.Logger
}

var _ Stage = (*ExtractStage)(nil)

// NewExtractStage creates the extraction stage.
func NewExtractStage(store storage.BlobStore, extractor pdftext.Extractor, opts ...Option) (*ExtractStage, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &ExtractStage{
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		logger:    cfg.logger.With("stage", core.StageExtraction),
	}, nil
}

func (s *ExtractStage) Name() core.StageName {
	return core.StageExtraction
}

// Run extracts in.Key from in.Bucket.
func (s *ExtractStage) Run(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	if err := core.ValidateInput(core.StageExtraction, in); err != nil {
		return nil, stageError(core.StageExtraction, core.KindValidation, err)
	}
	documentID, err := core.DocumentIDFromKey(in.Key)
	if err != nil {
		return nil, stageError(core.StageExtraction, core.KindValidation, err)
	}
	logger := s.logger.With("document_id", documentID)
	logger.Info("extracting text", "bucket", in.Bucket, "key", in.Key)

	data, err := getBlob(ctx, s.store, s.cfg.callTimeout, in.Bucket, in.Key)
	if err != nil {
		return nil, storageError(core.StageExtraction, "reading", in.Bucket, in.Key, err)
	}

	doc, err := s.extractor.Extract(ctx, data)
	if err != nil {
		logger.Error("failed to parse pdf", "err", err)
		kind := core.KindCapability
		if errors.Is(err, pdftext.ErrInvalidPDF) {
			kind = core.KindValidation
		}
		return nil, stageError(core.StageExtraction, kind, fmt.Errorf("parsing %s: %w", in.Key, err))
	}

	chunks, err := chunkPages(doc.Pages, s.cfg.chunkSize, s.cfg.chunkOverlap)
	if err != nil {
		return nil, stageError(core.StageExtraction, core.KindValidation, err)
	}

	now := core.Timestamp(s.cfg.now())
	artifactKey := core.ArtifactKey(core.StageExtraction, documentID)
	artifact := &core.ExtractionArtifact{
		DocumentID:          documentID,
		SourceBucket:        in.Bucket,
		SourceKey:           in.Key,
		ContentHash:         core.ContentHash(data),
		TotalPages:          len(doc.Pages),
		Chunks:              chunks,
		Metadata:            doc.Metadata,
		ExtractionTimestamp: now,
		PipelineStage:       core.StageExtraction,
	}
	if err := writeArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, artifactKey, artifact); err != nil {
		return nil, storageError(core.StageExtraction, "writing", in.Bucket, artifactKey, err)
	}
	logger.Info("extracted text", "pages", artifact.TotalPages, "chunks", len(chunks), "artifact", artifactKey)

	out := in.Clone()
	out.Stage = core.StageExtraction
	out.DocumentID = documentID
	out.TotalPages = artifact.TotalPages
	md := doc.Metadata
	out.Metadata = &md
	out.ExtractedFileKey = artifactKey
	out.ProcessingTimestamp = now
	if s.cfg.inlineChunks {
		out.Chunks = chunks
	} else {
		out.Chunks = nil
	}
	return out, nil
}

// chunkPages splits each non-blank page. Chunk numbering restarts on every
// page.
func chunkPages(pages []string, size, overlap int) ([]core.Chunk, error) {
	chunks := []core.Chunk{}
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts, err := chunker.Split(text, size, overlap)
		if err != nil {
			return nil, err
		}
		page := i + 1
		for j, part := range parts {
			chunks = append(chunks, core.Chunk{
				Page:      page,
				ChunkID:   core.ChunkID(page, j+1),
				Text:      strings.TrimSpace(part),
				CharCount: utf8.RuneCountInString(part),
			})
		}
	}
	return chunks, nil
}
