package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ArtifactStatus reports whether a stage's artifact exists for a document.
type ArtifactStatus struct {
	Stage     core.StageName `json:"stage"`
	Key       string         `json:"key"`
	Exists    bool           `json:"exists"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// stamped decodes the timestamp field of any stage artifact.
type stamped struct {
	Extraction string `json:"extraction_timestamp"`
	Embeddings string `json:"embeddings_timestamp"`
	Indexing   string `json:"indexing_timestamp"`
	Completion string `json:"completion_timestamp"`
}

func (s stamped) first() string {
	for _, ts := range []string{s.Extraction, s.Embeddings, s.Indexing, s.Completion} {
		if ts != "" {
			return ts
		}
	}
	return ""
}

// Lineage lists the artifacts of every stage for documentID in stage order.
func Lineage(ctx context.Context, store storage.BlobStore, bucket, documentID string) ([]ArtifactStatus, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrMissingDocumentID)
	}
	out := make([]ArtifactStatus, 0, len(core.Stages))
	for _, stage := range core.Stages {
		st := ArtifactStatus{Stage: stage, Key: core.ArtifactKey(stage, documentID)}
		var ts stamped
		err := storage.ReadJSON(ctx, store, bucket, st.Key, &ts)
		switch {
		case err == nil:
			st.Exists = true
			st.Timestamp = ts.first()
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("reading %s/%s: %w", bucket, st.Key, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// InputFor rebuilds the input payload of stage for documentID from the
// artifacts persisted by earlier stages, so a single stage can be re-run.
// A missing upstream artifact wraps core.ErrPrecondition.
func InputFor(ctx context.Context, store storage.BlobStore, bucket, documentID string, stage core.StageName) (*core.Payload, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrMissingDocumentID)
	}

	p := core.NewPayload(bucket, "")
	p.DocumentID = documentID

	read := func(s core.StageName, v any) error {
		key := core.ArtifactKey(s, documentID)
		if err := storage.ReadJSON(ctx, store, bucket, key, v); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("%w: %s artifact %s: %w", core.ErrPrecondition, s, key, err)
			}
			return err
		}
		return nil
	}

	switch stage {
	case core.StageExtraction:
		var extracted core.ExtractionArtifact
		err := storage.ReadJSON(ctx, store, bucket, core.ArtifactKey(core.StageExtraction, documentID), &extracted)
		switch {
		case err == nil && extracted.SourceKey != "":
			p.Key = extracted.SourceKey
		case err == nil, errors.Is(err, storage.ErrNotFound):
			p.Key = defaultUploadKey(documentID)
		default:
			return nil, err
		}
		p.DocumentID = ""
		return p, nil
	case core.StageEmbeddings, core.StageIndexing, core.StageSummary:
	default:
		return nil, fmt.Errorf("%w: %w %q", core.ErrValidation, core.ErrUnknownStage, stage)
	}

	var extracted core.ExtractionArtifact
	if err := read(core.StageExtraction, &extracted); err != nil {
		return nil, err
	}
	p.Stage = core.StageExtraction
	p.Key = extracted.SourceKey
	p.TotalPages = extracted.TotalPages
	md := extracted.Metadata
	p.Metadata = &md
	p.ExtractedFileKey = core.ArtifactKey(core.StageExtraction, documentID)
	p.ProcessingTimestamp = extracted.ExtractionTimestamp
	if stage == core.StageEmbeddings {
		return p, nil
	}

	var embeddings core.EmbeddingsArtifact
	if err := read(core.StageEmbeddings, &embeddings); err != nil {
		return nil, err
	}
	p.Stage = core.StageEmbeddings
	p.EmbeddingsFileKey = core.ArtifactKey(core.StageEmbeddings, documentID)
	p.EmbeddingsCount = embeddings.EmbeddingsCount
	p.EmbeddingModel = embeddings.EmbeddingModel
	p.ProcessingTimestamp = embeddings.EmbeddingsTimestamp
	if stage == core.StageIndexing {
		return p, nil
	}

	var indexed core.IndexingArtifact
	if err := read(core.StageIndexing, &indexed); err != nil {
		return nil, err
	}
	p.Stage = core.StageIndexing
	p.IndexedFileKey = core.ArtifactKey(core.StageIndexing, documentID)
	p.IndexedDocuments = indexed.IndexedDocuments
	p.Index = indexed.Index
	p.IndexingSuccess = indexed.IndexingSuccess
	p.ProcessingTimestamp = indexed.IndexingTimestamp
	return p, nil
}

func defaultUploadKey(documentID string) string {
	return "uploads/" + documentID + ".pdf"
}
