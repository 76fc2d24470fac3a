package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) storage.RunRepository {
	return &RunRepository{backend: backend}
}

// SaveRun persists a run record and indexes it by document id.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.RunRecord) error {
	if run == nil || run.ExecutionID == "" {
		return fmt.Errorf("%w: run record has no execution id", storage.ErrInvalidLocation)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeRunRecordKey(run.ExecutionID), storage.MarshalRunRecord(run)); err != nil {
			return err
		}
		if run.DocumentID != "" {
			if err := tx.Set(makeRunDocKey(run.DocumentID, run.ExecutionID), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetRun retrieves a run record by execution id.
func (r *RunRepository) GetRun(ctx context.Context, executionID string) (*core.RunRecord, error) {
	var run *core.RunRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		run, err = getRun(tx, executionID)
		return err
	}, false)
	return run, err
}

// ListRuns returns the runs of documentID, or every run when it is empty,
// ordered by start time.
func (r *RunRepository) ListRuns(ctx context.Context, documentID string) ([]*core.RunRecord, error) {
	var runs []*core.RunRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if documentID == "" {
			return scanPrefix(tx, []byte(runRecordPrefix+":"), false, func(_, val []byte) error {
				run, err := storage.UnmarshalRunRecord(val)
				if err != nil {
					return err
				}
				runs = append(runs, run)
				return nil
			})
		}

		return scanPrefix(tx, makePartialRunDocKey(documentID), true, func(key, _ []byte) error {
			executionID, err := executionIDFromRunDocKey(key)
			if err != nil {
				return err
			}
			run, err := getRun(tx, executionID)
			if err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(runs, func(a, b *core.RunRecord) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs, nil
}

// Close is a no-op; the backend is owned by the caller.
func (r *RunRepository) Close() error {
	return nil
}

func getRun(tx *badger.Txn, executionID string) (*core.RunRecord, error) {
	item, err := tx.Get(makeRunRecordKey(executionID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: run %s", storage.ErrNotFound, executionID)
		}
		return nil, err
	}

	var run *core.RunRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		run, unmarshalErr = storage.UnmarshalRunRecord(val)
		return unmarshalErr
	})
	return run, err
}
