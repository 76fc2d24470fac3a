package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/core"
)

// ErrExecutorClosed is returned by Start after Release.
var ErrExecutorClosed = errors.New("executor closed")

// Executor starts a pipeline execution for an event and returns its id
// without waiting for it to finish.
type Executor interface {
	Start(ctx context.Context, ev Event) (string, error)
}

// LocalExecutor runs executions on an in-process worker pool.
type LocalExecutor struct {
	coordinator *Coordinator
	pool        *ants.Pool
	wg          sync.WaitGroup
	logger      *slog.Logger
}

var _ Executor = (*LocalExecutor)(nil)

// NewLocalExecutor creates an executor running up to workers executions at
// once. Further Starts block until a worker is free.
func NewLocalExecutor(c *Coordinator, workers int) (*LocalExecutor, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &LocalExecutor{
		coordinator: c,
		pool:        pool,
		logger:      c.logger.With("executor", "local"),
	}, nil
}

// Start validates ev against the trigger and submits the run. The run does
// not inherit ctx's cancellation.
func (e *LocalExecutor) Start(ctx context.Context, ev Event) (string, error) {
	if !e.coordinator.Trigger().Matches(ev) {
		return "", fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrNotTriggered, ev)
	}
	id := e.coordinator.NewExecutionID(ev)
	runCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	err := e.pool.Submit(func() {
		defer e.wg.Done()
		if _, err := e.coordinator.RunWithID(runCtx, id, ev); err != nil {
			e.logger.Error("execution failed", "execution_id", id, "err", err)
		}
	})
	if err != nil {
		e.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return "", ErrExecutorClosed
		}
		return "", err
	}
	return id, nil
}

// Wait blocks until every started execution has finished.
func (e *LocalExecutor) Wait() {
	e.wg.Wait()
}

// Release waits for running executions and releases the pool.
func (e *LocalExecutor) Release() {
	e.wg.Wait()
	e.pool.Release()
}
