package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// SummaryStage writes the terminal lineage record of a run.
type SummaryStage struct {
	store  storage.BlobStore
	cfg    *settings
	logger *slog.Logger
}

var _ Stage = (*SummaryStage)(nil)

// NewSummaryStage creates the summary stage.
func NewSummaryStage(store storage.BlobStore, opts ...Option) (*SummaryStage, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &SummaryStage{
		store:  store,
		cfg:    cfg,
		logger: cfg.logger.With("stage", core.StageSummary),
	}, nil
}

func (s *SummaryStage) Name() core.StageName {
	return core.StageSummary
}

// Run summarizes the run for in.DocumentID. Counts come from the payload;
// stage timestamps come from whichever upstream artifacts exist.
func (s *SummaryStage) Run(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	if err := core.ValidateInput(core.StageSummary, in); err != nil {
		return nil, stageError(core.StageSummary, core.KindValidation, err)
	}
	logger := s.logger.With("document_id", in.DocumentID)

	now := core.Timestamp(s.cfg.now())
	summary, err := s.build(ctx, in, now)
	if err != nil {
		return nil, err
	}

	artifactKey := core.ArtifactKey(core.StageSummary, in.DocumentID)
	if err := writeArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, artifactKey, summary); err != nil {
		return nil, storageError(core.StageSummary, "writing", in.Bucket, artifactKey, err)
	}
	logger.Info("summarized run", "artifact", artifactKey, "indexing_success", summary.Processing.IndexingSuccess)

	out := in.Clone()
	out.Stage = core.StageSummary
	out.SummaryFileKey = artifactKey
	out.ProcessingTimestamp = now
	return out, nil
}

func (s *SummaryStage) build(ctx context.Context, in *core.Payload, now string) (*core.ProcessingSummary, error) {
	summary := &core.ProcessingSummary{
		DocumentID: in.DocumentID,
		Source: core.SummarySource{
			Bucket: in.Bucket,
			Key:    in.Key,
		},
		Processing: core.SummaryProcessing{
			Status:           core.StatusCompleted,
			TotalPages:       in.TotalPages,
			EmbeddingsCount:  in.EmbeddingsCount,
			IndexedDocuments: in.IndexedDocuments,
			Index:            in.Index,
			IndexingSuccess:  in.IndexingSuccess,
			Timestamps:       core.SummaryTimestamps{Completion: now},
		},
		Artifacts: core.SummaryArtifacts{
			Extracted:  in.ExtractedFileKey,
			Embeddings: in.EmbeddingsFileKey,
			Indexed:    in.IndexedFileKey,
		},
		PipelineVersion:     core.PipelineVersion,
		CompletionTimestamp: now,
		PipelineStage:       core.StageSummary,
	}

	var extracted core.ExtractionArtifact
	found, err := s.optional(ctx, in.Bucket, summary.Artifacts.Extracted, &extracted)
	if err != nil {
		return nil, err
	}
	if found {
		summary.Processing.Timestamps.Extraction = extracted.ExtractionTimestamp
		if summary.Source.Key == "" {
			summary.Source.Key = extracted.SourceKey
		}
		if summary.Processing.TotalPages == 0 {
			summary.Processing.TotalPages = extracted.TotalPages
		}
	}

	var embeddings core.EmbeddingsArtifact
	found, err = s.optional(ctx, in.Bucket, summary.Artifacts.Embeddings, &embeddings)
	if err != nil {
		return nil, err
	}
	if found {
		summary.Processing.Timestamps.Embeddings = embeddings.EmbeddingsTimestamp
		if summary.Processing.EmbeddingsCount == 0 {
			summary.Processing.EmbeddingsCount = embeddings.EmbeddingsCount
		}
	}

	var indexed core.IndexingArtifact
	found, err = s.optional(ctx, in.Bucket, summary.Artifacts.Indexed, &indexed)
	if err != nil {
		return nil, err
	}
	if found {
		summary.Processing.Timestamps.Indexing = indexed.IndexingTimestamp
		if summary.Processing.IndexedDocuments == 0 {
			summary.Processing.IndexedDocuments = indexed.IndexedDocuments
			summary.Processing.Index = indexed.Index
			summary.Processing.IndexingSuccess = indexed.IndexingSuccess
		}
	}

	summary.Source.Location = fmt.Sprintf("s3://%s/%s", summary.Source.Bucket, summary.Source.Key)
	return summary, nil
}

// optional reads an upstream artifact if key is set. A missing object is not
// an error; any other storage failure is.
func (s *SummaryStage) optional(ctx context.Context, bucket, key string, v any) (bool, error) {
	if key == "" {
		return false, nil
	}
	err := readArtifact(ctx, s.store, s.cfg.callTimeout, bucket, key, v)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, stageError(core.StageSummary, core.KindCapability, fmt.Errorf("reading %s/%s: %w", bucket, key, err))
	}
}
