package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// ContentTypeJSON is the content type of stage artifacts.
const ContentTypeJSON = "application/json"

// ValidateLocation rejects empty buckets and keys, buckets containing '/'
// and keys with empty or relative path segments.
func ValidateLocation(bucket, key string) error {
	if bucket == "" || strings.Contains(bucket, "/") {
		return fmt.Errorf("%w: bucket %q", ErrInvalidLocation, bucket)
	}
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: key %q", ErrInvalidLocation, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: key %q", ErrInvalidLocation, key)
		}
	}
	return nil
}

// MarshalRunRecord serializes a RunRecord to bytes.
func MarshalRunRecord(run *core.RunRecord) []byte {
	buf := make([]byte, core.RunRecordMUS.Size(*run))
	core.RunRecordMUS.Marshal(*run, buf)
	return buf
}

// UnmarshalRunRecord deserializes a RunRecord from bytes.
func UnmarshalRunRecord(data []byte) (*core.RunRecord, error) {
	run, _, err := core.RunRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &run, nil
}

// WriteJSON stores v as indented JSON.
func WriteJSON(ctx context.Context, store BlobStore, bucket, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return store.Put(ctx, bucket, key, data, ContentTypeJSON)
}

// ReadJSON loads the object at key into v.
func ReadJSON(ctx context.Context, store BlobStore, bucket, key string, v any) error {
	data, err := store.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrSerializationFailed, bucket, key, err)
	}
	return nil
}
