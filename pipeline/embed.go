package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"golang.org/x/time/rate"
)

// EmbedStage generates one embedding per chunk.
type EmbedStage struct {
	store    storage.BlobStore
	embedder ai.Embedder
	pool     *ants.Pool
	limiter  *rate.Limiter
	cfg      *settings
	logger   *slog.Logger
}

var _ Stage = (*EmbedStage)(nil)

// NewEmbedStage creates the embedding stage. Call Release when done.
func NewEmbedStage(store storage.BlobStore, embedder ai.Embedder, opts ...Option) (*EmbedStage, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.poolSize)
	if err != nil {
		return nil, err
	}
	return &EmbedStage{
		store:    store,
		embedder: embedder,
		pool:     pool,
		limiter:  rate.NewLimiter(cfg.rateLimit, cfg.rateBurst),
		cfg:      cfg,
		logger:   cfg.logger.With("stage", core.StageEmbeddings),
	}, nil
}

func (s *EmbedStage) Name() core.StageName {
	return core.StageEmbeddings
}

// Release releases the worker pool.
func (s *EmbedStage) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Run embeds the chunks referenced by in.ExtractedFileKey, or in.Chunks when
// no artifact is referenced.
func (s *EmbedStage) Run(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	if err := core.ValidateInput(core.StageEmbeddings, in); err != nil {
		return nil, stageError(core.StageEmbeddings, core.KindValidation, err)
	}
	logger := s.logger.With("document_id", in.DocumentID)

	chunks := in.Chunks
	sourceKey := in.Key
	if in.ExtractedFileKey != "" {
		var extracted core.ExtractionArtifact
		if err := readArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, in.ExtractedFileKey, &extracted); err != nil {
			return nil, storageError(core.StageEmbeddings, "reading", in.Bucket, in.ExtractedFileKey, err)
		}
		chunks = extracted.Chunks
		if sourceKey == "" {
			sourceKey = extracted.SourceKey
		}
	}
	if len(chunks) == 0 {
		return nil, stageError(core.StageEmbeddings, core.KindPrecondition, core.ErrMissingChunks)
	}
	for i := range chunks {
		if err := core.ValidateChunk(&chunks[i]); err != nil {
			return nil, stageError(core.StageEmbeddings, core.KindValidation, err)
		}
	}

	logger.Info("generating embeddings", "chunks", len(chunks))
	results, err := s.embedAll(ctx, chunks)
	if err != nil {
		return nil, stageError(core.StageEmbeddings, core.KindCapability, err)
	}

	model := s.embedder.Model()
	embedded := make([]core.EmbeddedChunk, 0, len(chunks))
	failed := []string{}
	unavailable := 0
	for i, r := range results {
		if r.err != nil {
			logger.Warn("dropping chunk", "chunk_id", chunks[i].ChunkID, "err", r.err)
			failed = append(failed, chunks[i].ChunkID)
			if errors.Is(r.err, ai.ErrUnavailable) {
				unavailable++
			}
			continue
		}
		embedded = append(embedded, core.EmbeddedChunk{
			Chunk:          chunks[i],
			Embedding:      r.vector,
			EmbeddingModel: model,
		})
	}
	if len(embedded) == 0 && unavailable == len(chunks) {
		return nil, stageError(core.StageEmbeddings, core.KindCapability,
			fmt.Errorf("all %d chunks failed: %w", len(chunks), results[0].err))
	}

	now := core.Timestamp(s.cfg.now())
	artifactKey := core.ArtifactKey(core.StageEmbeddings, in.DocumentID)
	artifact := &core.EmbeddingsArtifact{
		DocumentID:          in.DocumentID,
		SourceBucket:        in.Bucket,
		SourceKey:           sourceKey,
		ExtractedFileKey:    in.ExtractedFileKey,
		EmbeddingsData:      embedded,
		EmbeddingsCount:     len(embedded),
		FailedChunks:        failed,
		EmbeddingModel:      model,
		EmbeddingsTimestamp: now,
		PipelineStage:       core.StageEmbeddings,
	}
	if err := writeArtifact(ctx, s.store, s.cfg.callTimeout, in.Bucket, artifactKey, artifact); err != nil {
		return nil, storageError(core.StageEmbeddings, "writing", in.Bucket, artifactKey, err)
	}
	logger.Info("generated embeddings", "embedded", len(embedded), "failed", len(failed), "artifact", artifactKey)

	out := in.Clone()
	out.Stage = core.StageEmbeddings
	out.EmbeddingsFileKey = artifactKey
	out.EmbeddingsCount = len(embedded)
	out.EmbeddingModel = model
	out.ProcessingTimestamp = now
	return out, nil
}

type embedResult struct {
	vector []float32
	err    error
}

// embedAll fans the chunks out over the worker pool. Results keep chunk
// order. The returned error is set only when the run itself could not
// proceed; per-chunk failures are in the results.
func (s *EmbedStage) embedAll(ctx context.Context, chunks []core.Chunk) ([]embedResult, error) {
	results := make([]embedResult, len(chunks))

	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			results[i] = s.embedOne(ctx, chunks[i].Text)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting chunk %s: %w", chunks[i].ChunkID, err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *EmbedStage) embedOne(ctx context.Context, text string) embedResult {
	if err := s.limiter.Wait(ctx); err != nil {
		return embedResult{err: err}
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.callTimeout)
	defer cancel()

	vector, err := s.embedder.EmbedText(callCtx, text)
	if err != nil {
		return embedResult{err: err}
	}
	if len(vector) == 0 {
		return embedResult{err: ai.ErrEmptyEmbedding}
	}
	return embedResult{vector: vector}
}
