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


// Package docpipe assembles the document processing system from
// configuration: blob storage, run records, the embedding provider, the
// search index, the four pipeline stages and the coordinator that drives
// them.
package docpipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/ai/ollama"
	"github.com/poiesic/docpipe/ai/openai"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/index"
	"github.com/poiesic/docpipe/index/qdrant"
	"github.com/poiesic/docpipe/pdftext"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/poiesic/docpipe/storage/minio"
)

// System is an opened docpipe instance: storage, provider and pipeline
// built from one Config. Open builds it; Close releases it.
type System struct {
	cfg         *config.Config
	backend     *badger.Backend
	store       storage.BlobStore
	runs        storage.RunRepository
	provider    ai.AIProvider
	indexer     index.Indexer
	pipeline    *pipeline.Pipeline
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
}

// Option configures a System.
type Option func(*systemOptions)

type systemOptions struct {
	logger   *slog.Logger
	provider ai.AIProvider
	indexer  index.Indexer
	inMemory bool
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// WithProvider replaces the configured embedding provider.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithIndexer replaces the configured search index.
func WithIndexer(indexer index.Indexer) Option {
	return func(o *systemOptions) {
		o.indexer = indexer
	}
}

// WithInMemory keeps Badger in memory regardless of storage.path.
func WithInMemory() Option {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// NewProvider creates the embedding provider named by cfg.Provider.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ai.ProviderOllama:
		return ollama.NewProvider(cfg)
	case ai.ProviderMock:
		return mock.NewProvider(cfg)
	default:
		return openai.NewProvider(cfg)
	}
}

// Trigger builds the upload trigger from the pipeline section.
func Trigger(cfg *config.Config) coordinator.Trigger {
	t := coordinator.DefaultTrigger()
	if cfg.Pipeline.UploadPrefix != "" {
		t.Prefix = cfg.Pipeline.UploadPrefix
	}
	if len(cfg.Pipeline.AllowedExtensions) > 0 {
		t.Extensions = cfg.Pipeline.AllowedExtensions
	}
	return t
}

// Open builds a System. Run records always live in Badger; artifacts live
// in Badger or MinIO depending on storage.driver.
func Open(cfg *config.Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &systemOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	backend, err := badger.OpenBackend(cfg.Storage.Path, options.inMemory || cfg.Storage.Path == "")
	if err != nil {
		return nil, err
	}
	sys := &System{
		cfg:     cfg,
		backend: backend,
		runs:    badger.NewRunRepository(backend),
		logger:  logger,
	}

	switch cfg.Storage.Driver {
	case config.StorageMinio:
		sys.store, err = minio.NewBlobStore(minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Secure:    cfg.Minio.Secure,
		})
	default:
		sys.store = badger.NewBlobStore(backend)
	}
	if err != nil {
		sys.Close()
		return nil, err
	}

	sys.provider = options.provider
	if sys.provider == nil {
		if sys.provider, err = NewProvider(cfg.AIConfig()); err != nil {
			sys.Close()
			return nil, err
		}
	}

	sys.indexer = options.indexer
	if sys.indexer == nil && cfg.Index.Driver == config.IndexQdrant {
		sys.indexer, err = qdrant.NewIndexer(qdrant.Config{
			Host:   cfg.Index.Qdrant.Host,
			Port:   cfg.Index.Qdrant.Port,
			APIKey: cfg.Index.Qdrant.APIKey,
		})
		if err != nil {
			sys.Close()
			return nil, err
		}
	}

	p := cfg.Pipeline
	sys.pipeline, err = pipeline.New(sys.store,
		pdftext.NewExtractor(pdftext.WithLogger(logger)),
		sys.provider.Embedder(),
		sys.indexer,
		pipeline.WithLogger(logger),
		pipeline.WithCallTimeout(p.CallTimeout),
		pipeline.WithChunkWindow(p.ChunkSize, p.ChunkOverlap),
		pipeline.WithInlineChunks(p.InlineChunks),
		pipeline.WithPoolSize(p.EmbedWorkers),
		pipeline.WithRateLimit(p.EmbedRate, p.EmbedBurst),
		pipeline.WithIndexName(cfg.Index.Name),
	)
	if err != nil {
		sys.Close()
		return nil, err
	}

	sys.coordinator, err = coordinator.New(sys.pipeline.Stages(), sys.runs,
		coordinator.WithLogger(logger),
		coordinator.WithRetry(p.MaxAttempts, p.RetryDelay),
		coordinator.WithTrigger(Trigger(cfg)),
	)
	if err != nil {
		sys.Close()
		return nil, err
	}
	return sys, nil
}

// Close releases the pipeline, the provider, the index client and the
// Badger backend.
func (s *System) Close() error {
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
		}
	}
	if s.indexer != nil {
		if err := s.indexer.Close(); err != nil {
			s.logger.Error("error closing indexer", "err", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing blob store", "err", err)
			return err
		}
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.Config {
	return s.cfg
}

// Bucket returns the bucket uploads and artifacts live in.
func (s *System) Bucket() string {
	return s.cfg.Storage.Bucket
}

// Store returns the blob store holding uploads and artifacts.
func (s *System) Store() storage.BlobStore {
	return s.store
}

// Runs returns the repository of persisted run records.
func (s *System) Runs() storage.RunRepository {
	return s.runs
}

// Pipeline returns the stage pipeline shared by every executor.
func (s *System) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Coordinator returns the coordinator that drives runs through the
// pipeline.
func (s *System) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// EnsureBucket creates the configured bucket on MinIO. It is a no-op for
// Badger.
func (s *System) EnsureBucket(ctx context.Context) error {
	if err := minio.EnsureBucket(ctx, s.store, s.Bucket()); err != nil {
		return fmt.Errorf("ensuring bucket %s: %w", s.Bucket(), err)
	}
	return nil
}

// NewLocalExecutor starts runs on an in-process worker pool.
func (s *System) NewLocalExecutor(workers int) (*coordinator.LocalExecutor, error) {
	return coordinator.NewLocalExecutor(s.coordinator, workers)
}
