package pipeline

import (
	"context"
	"fmt"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/index"
	"github.com/poiesic/docpipe/pdftext"
	"github.com/poiesic/docpipe/storage"
)

// Stage is one step of the pipeline.
type Stage interface {
	Name() core.StageName

	// Run processes one document. The returned payload is a copy of in with
	// the stage's fields added; errors are *core.StageError.
	Run(ctx context.Context, in *core.Payload) (*core.Payload, error)
}

// Pipeline holds the four stages built over shared capabilities.
type Pipeline struct {
	extract *ExtractStage
	embed   *EmbedStage
	index   *IndexStage
	summary *SummaryStage
}

// New builds all stages. indexer may be nil, in which case indexing runs in
// prepared mode.
func New(store storage.BlobStore, extractor pdftext.Extractor, embedder ai.Embedder, indexer index.Indexer, opts ...Option) (*Pipeline, error) {
	extract, err := NewExtractStage(store, extractor, opts...)
	if err != nil {
		return nil, err
	}
	embed, err := NewEmbedStage(store, embedder, opts...)
	if err != nil {
		return nil, err
	}
	idx, err := NewIndexStage(store, indexer, opts...)
	if err != nil {
		embed.Release()
		return nil, err
	}
	summary, err := NewSummaryStage(store, opts...)
	if err != nil {
		embed.Release()
		return nil, err
	}
	return &Pipeline{extract: extract, embed: embed, index: idx, summary: summary}, nil
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{p.extract, p.embed, p.index, p.summary}
}

// Stage returns the stage with the given name.
func (p *Pipeline) Stage(name core.StageName) (Stage, error) {
	for _, s := range p.Stages() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %w %q", core.ErrValidation, core.ErrUnknownStage, name)
}

// Run executes every stage in order without retries, threading each output
// into the next stage.
func (p *Pipeline) Run(ctx context.Context, in *core.Payload) (*core.Payload, error) {
	payload := in
	for _, s := range p.Stages() {
		out, err := s.Run(ctx, payload)
		if err != nil {
			return payload, err
		}
		payload = out
	}
	return payload, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.embed.Release()
}
