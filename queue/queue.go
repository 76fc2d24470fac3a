// Package queue hands pipeline executions to workers over a Redis list.
//
// Queue.Start pushes a job with LPUSH; Worker pops jobs with BRPOP, so jobs
// are processed in the order they were enqueued.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/core"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list jobs are pushed to.
const DefaultKey = "docpipe:jobs"

const (
	defaultPollTimeout = 5 * time.Second

	// defaultErrorDelay is the pause after Redis itself fails.
	defaultErrorDelay = time.Second
)

// ErrInvalidJob is returned for a list entry that does not decode to a Job.
var ErrInvalidJob = errors.New("invalid job")

// Job is one queued execution.
type Job struct {
	ExecutionID string            `json:"execution_id"`
	Event       coordinator.Event `json:"event"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
}

// listClient is the subset of *redis.Client the queue uses.
type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Config locates the Redis server.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewClient connects to Redis.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Queue enqueues executions. It implements coordinator.Executor.
type Queue struct {
	client  listClient
	key     string
	trigger coordinator.Trigger
	now     func() time.Time
	logger  *slog.Logger
}

var _ coordinator.Executor = (*Queue)(nil)

// New creates a queue pushing to key. An empty key uses DefaultKey.
func New(client *redis.Client, key string, trigger coordinator.Trigger, logger *slog.Logger) *Queue {
	return newQueue(client, key, trigger, logger)
}

func newQueue(client listClient, key string, trigger coordinator.Trigger, logger *slog.Logger) *Queue {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client:  client,
		key:     key,
		trigger: trigger,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With("queue", key),
	}
}

// Start enqueues ev and returns the execution id the worker will run it
// under.
func (q *Queue) Start(ctx context.Context, ev coordinator.Event) (string, error) {
	if !q.trigger.Matches(ev) {
		return "", fmt.Errorf("%w: %w: %s", core.ErrValidation, coordinator.ErrNotTriggered, ev)
	}
	job := Job{
		ExecutionID: coordinator.ExecutionName(ev.Key),
		Event:       ev,
		EnqueuedAt:  q.now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return "", fmt.Errorf("%w: enqueueing %s: %w", core.ErrCapability, ev, err)
	}
	q.logger.Info("enqueued execution", "execution_id", job.ExecutionID, "key", ev.Key)
	return job.ExecutionID, nil
}

// Len returns the number of queued jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Runner runs one execution.
type Runner interface {
	RunWithID(ctx context.Context, executionID string, ev coordinator.Event) (*coordinator.Result, error)
}

// Worker pops jobs and runs them one at a time.
type Worker struct {
	client      listClient
	key         string
	runner      Runner
	pollTimeout time.Duration
	errorDelay  time.Duration
	logger      *slog.Logger
}

// NewWorker creates a worker consuming key. An empty key uses DefaultKey.
func NewWorker(client *redis.Client, key string, runner Runner, logger *slog.Logger) *Worker {
	return newWorker(client, key, runner, logger)
}

func newWorker(client listClient, key string, runner Runner, logger *slog.Logger) *Worker {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		client:      client,
		key:         key,
		runner:      runner,
		pollTimeout: defaultPollTimeout,
		errorDelay:  defaultErrorDelay,
		logger:      logger.With("worker", key),
	}
}

// Run processes jobs until ctx is cancelled. Failed executions are logged
// and the worker moves on; their run records hold the failure.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}
		popped, err := w.ProcessOne(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		w.logger.Error("failed to process job", "err", err)
		if popped {
			continue
		}
		// Redis is failing; wait before polling again.
		timer := time.NewTimer(w.errorDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// ProcessOne waits up to the poll timeout for a job and runs it. It
// reports whether a job was popped; the error is a queue or decode error,
// not the execution's.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	res, err := w.client.BRPop(ctx, w.pollTimeout, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return true, fmt.Errorf("%w: unexpected reply %v", ErrInvalidJob, res)
	}

	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return true, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if job.ExecutionID == "" {
		job.ExecutionID = coordinator.ExecutionName(job.Event.Key)
	}

	logger := w.logger.With("execution_id", job.ExecutionID)
	logger.Debug("running job", "key", job.Event.Key, "queued_for", time.Since(job.EnqueuedAt))
	if _, err := w.runner.RunWithID(ctx, job.ExecutionID, job.Event); err != nil {
		logger.Warn("execution failed", "err", err)
	}
	return true, nil
}
