// Package minio implements storage.BlobStore on S3-compatible object storage
// through the MinIO client.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/poiesic/docpipe/storage"
)

// Config locates the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// BlobStore implements storage.BlobStore with a MinIO client.
type BlobStore struct {
	client *minio.Client
	logger *slog.Logger
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewClient creates a MinIO client from cfg.
func NewClient(cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config: Endpoint is required")
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
}

// NewBlobStore connects to the object store.
func NewBlobStore(cfg Config) (storage.BlobStore, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &BlobStore{
		client: client,
		logger: slog.Default().With("component", "minio"),
	}, nil
}

// EnsureBucket creates bucket if it does not exist.
func EnsureBucket(ctx context.Context, store storage.BlobStore, bucket string) error {
	s, ok := store.(*BlobStore)
	if !ok {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	s.logger.Info("creating bucket", "bucket", bucket)
	return s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// Get returns the object's bytes.
func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err, bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err, bucket, key)
	}
	return data, nil
}

// Put creates or replaces an object.
func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if err := storage.ValidateLocation(bucket, key); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return translate(err, bucket, key)
	}
	return nil
}

// List returns the keys in bucket starting with prefix.
func (s *BlobStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, translate(obj.Err, bucket, prefix)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Close is a no-op; the client holds no persistent connections of its own.
func (s *BlobStore) Close() error {
	return nil
}

// translate maps missing buckets and objects onto storage.ErrNotFound.
func translate(err error, bucket, key string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket", resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
	}
	return err
}

// Client returns the underlying MinIO client.
func (s *BlobStore) Client() *minio.Client {
	return s.client
}
