// Package qdrant implements index.Indexer on a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/index"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// pointNamespace scopes the deterministic point ids.
var pointNamespace = uuid.MustParse("6f1c3c1e-7a53-4f36-9a43-3c4b8f0e2d11")

// Config locates the Qdrant gRPC endpoint.
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// Indexer implements index.Indexer with the Qdrant gRPC client.
type Indexer struct {
	client *qdrant.Client
	logger *slog.Logger

	mu    sync.Mutex
	ready map[string]bool
}

var _ index.Indexer = (*Indexer)(nil)

// NewIndexer creates a Qdrant client. No connection is made until the first
// upsert.
func NewIndexer(cfg Config) (index.Indexer, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return &Indexer{
		client: client,
		logger: slog.Default().With("component", "qdrant"),
		ready:  make(map[string]bool),
	}, nil
}

// Upsert ensures the collection exists, sized to the first record's vector,
// then writes all records in one request.
func (ix *Indexer) Upsert(ctx context.Context, collection string, records []core.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := ix.ensureCollection(ctx, collection, uint64(len(records[0].EmbeddingVector))); err != nil {
		return classify(err)
	}

	wait := true
	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         BuildPoints(records),
	})
	if err != nil {
		ix.logger.Error("upsert failed", "collection", collection, "points", len(records), "err", err)
		return classify(err)
	}
	ix.logger.Debug("upserted points", "collection", collection, "points", len(records))
	return nil
}

// Close closes the gRPC connection.
func (ix *Indexer) Close() error {
	return ix.client.Close()
}

func (ix *Indexer) ensureCollection(ctx context.Context, collection string, size uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.ready[collection] {
		return nil
	}

	collections, err := ix.client.ListCollections(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(collections, collection) {
		ix.logger.Info("creating collection", "collection", collection, "size", size)
		err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return err
		}
	}
	ix.ready[collection] = true
	return nil
}

// PointID returns the deterministic point id of a chunk.
func PointID(documentID, chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentID+"/"+chunkID)).String()
}

// BuildPoints converts index records to Qdrant points.
func BuildPoints(records []core.IndexRecord) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.DocumentID, r.ChunkID)),
			Vectors: qdrant.NewVectors(r.EmbeddingVector...),
			Payload: qdrant.NewValueMap(payload(r)),
		}
	}
	return points
}

func payload(r core.IndexRecord) map[string]any {
	return map[string]any{
		"document_id": r.DocumentID,
		"chunk_id":    r.ChunkID,
		"text":        r.Text,
		"page":        r.Page,
		"char_count":  r.CharCount,
		"timestamp":   r.Timestamp,
		"metadata": map[string]any{
			"total_pages":   r.Metadata.TotalPages,
			"title":         r.Metadata.Title,
			"author":        r.Metadata.Author,
			"creation_date": r.Metadata.CreationDate,
		},
	}
}

// classify wraps connection-level gRPC failures with index.ErrUnavailable.
func classify(err error) error {
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", index.ErrUnavailable, err)
		}
	}
	return err
}
