package badger

import (
	"errors"
	"fmt"

	"github.com/poiesic/docpipe/storage"
)

var errClosed = fmt.Errorf("badger: %w", storage.ErrStorageClosed)

var errBadKey = errors.New("malformed key")

const (
	blobPrefix      = "blob"
	runRecordPrefix = "runrec"
	runDocPrefix    = "rundoc"
)

// makeBlobKey generates the key of an object.
// Format: blob:bucket/key
func makeBlobKey(bucket, key string) []byte {
	return []byte(fmt.Sprintf("%s:%s/%s", blobPrefix, bucket, key))
}

// makePartialBlobKey generates a partial key for listing a bucket.
// Format: blob:bucket/prefix
func makePartialBlobKey(bucket, prefix string) []byte {
	return makeBlobKey(bucket, prefix)
}

// objectKeyFromBlobKey strips the blob prefix and bucket from a stored key.
func objectKeyFromBlobKey(bucket string, stored []byte) (string, error) {
	head := len(blobPrefix) + 1 + len(bucket) + 1
	if len(stored) < head {
		return "", errBadKey
	}
	return string(stored[head:]), nil
}

// makeRunRecordKey generates a key for a run record by execution id.
// Format: runrec:executionID
func makeRunRecordKey(executionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runRecordPrefix, executionID))
}

// makeRunDocKey generates a key for the document index of run records.
// Format: rundoc:documentID\x00executionID
func makeRunDocKey(documentID, executionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00%s", runDocPrefix, documentID, executionID))
}

// makePartialRunDocKey generates a partial key for a document's runs.
// Format: rundoc:documentID\x00
func makePartialRunDocKey(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s\x00", runDocPrefix, documentID))
}

// executionIDFromRunDocKey extracts the execution id from a document index key.
func executionIDFromRunDocKey(key []byte) (string, error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == 0 {
			return string(key[i+1:]), nil
		}
	}
	return "", errBadKey
}
