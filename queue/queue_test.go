package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeList implements listClient over an in-memory list.
type fakeList struct {
	mu      sync.Mutex
	items   map[string][]string
	pushErr error
	popErr  error
	pops    int
}

func newFakeList() *fakeList {
	return &fakeList{items: map[string][]string{}}
}

func (f *fakeList) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "lpush", key)
	if f.pushErr != nil {
		cmd.SetErr(f.pushErr)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		var s string
		switch v := v.(type) {
		case []byte:
			s = string(v)
		case string:
			s = v
		}
		f.items[key] = append([]string{s}, f.items[key]...)
	}
	cmd.SetVal(int64(len(f.items[key])))
	return cmd
}

func (f *fakeList) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx, "brpop")
	f.mu.Lock()
	f.pops++
	if f.popErr != nil {
		f.mu.Unlock()
		cmd.SetErr(f.popErr)
		return cmd
	}
	for _, key := range keys {
		list := f.items[key]
		if len(list) == 0 {
			continue
		}
		last := list[len(list)-1]
		f.items[key] = list[:len(list)-1]
		f.mu.Unlock()
		cmd.SetVal([]string{key, last})
		return cmd
	}
	f.mu.Unlock()

	// Empty list: block briefly like a short BRPOP timeout.
	select {
	case <-ctx.Done():
		cmd.SetErr(ctx.Err())
	case <-time.After(time.Millisecond):
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (f *fakeList) LLen(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "llen", key)
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd.SetVal(int64(len(f.items[key])))
	return cmd
}

// testRunner implements Runner for testing
type testRunner struct {
	mu   sync.Mutex
	jobs []Job
	err  error
}

func (r *testRunner) RunWithID(ctx context.Context, id string, ev coordinator.Event) (*coordinator.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, Job{ExecutionID: id, Event: ev})
	if r.err != nil {
		return &coordinator.Result{ExecutionID: id, State: coordinator.StateFailed}, r.err
	}
	return &coordinator.Result{ExecutionID: id, State: coordinator.StateCompleted}, nil
}

func TestQueue_StartAndProcessInOrder(t *testing.T) {
	list := newFakeList()
	q := newQueue(list, "", coordinator.DefaultTrigger(), nil)

	first, err := q.Start(context.Background(), coordinator.Event{Bucket: "docs", Key: "uploads/a.pdf"})
	require.NoError(t, err)
	second, err := q.Start(context.Background(), coordinator.Event{Bucket: "docs", Key: "uploads/b.pdf"})
	require.NoError(t, err)
	assert.Regexp(t, `^pdf-processing-uploads-a-pdf-[0-9a-f]{8}$`, first)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	runner := &testRunner{}
	w := newWorker(list, "", runner, nil)
	for i := 0; i < 2; i++ {
		popped, err := w.ProcessOne(context.Background())
		require.NoError(t, err)
		assert.True(t, popped)
	}
	popped, err := w.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, popped, "queue drained")

	require.Len(t, runner.jobs, 2)
	assert.Equal(t, first, runner.jobs[0].ExecutionID)
	assert.Equal(t, "uploads/a.pdf", runner.jobs[0].Event.Key)
	assert.Equal(t, second, runner.jobs[1].ExecutionID)
}

func TestQueue_RejectsUnmatched(t *testing.T) {
	q := newQueue(newFakeList(), "", coordinator.DefaultTrigger(), nil)
	_, err := q.Start(context.Background(), coordinator.Event{Bucket: "docs", Key: "summaries/a.json"})
	assert.ErrorIs(t, err, coordinator.ErrNotTriggered)
}

func TestQueue_PushFailureIsCapability(t *testing.T) {
	list := newFakeList()
	list.pushErr = errors.New("connection refused")
	q := newQueue(list, "", coordinator.DefaultTrigger(), nil)

	_, err := q.Start(context.Background(), coordinator.Event{Bucket: "docs", Key: "uploads/a.pdf"})
	assert.ErrorIs(t, err, core.ErrCapability)
	assert.True(t, core.IsRetryable(err))
}

func TestWorker_FailedExecutionDoesNotStopWorker(t *testing.T) {
	list := newFakeList()
	q := newQueue(list, "jobs", coordinator.DefaultTrigger(), nil)
	_, err := q.Start(context.Background(), coordinator.Event{Bucket: "docs", Key: "uploads/a.pdf"})
	require.NoError(t, err)

	runner := &testRunner{err: errors.New("stage failed")}
	popped, err := newWorker(list, "jobs", runner, nil).ProcessOne(context.Background())
	assert.True(t, popped)
	assert.NoError(t, err)
	assert.Len(t, runner.jobs, 1)
}

func TestWorker_InvalidJob(t *testing.T) {
	list := newFakeList()
	list.LPush(context.Background(), DefaultKey, "not json")

	popped, err := newWorker(list, "", &testRunner{}, nil).ProcessOne(context.Background())
	assert.True(t, popped)
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	list := newFakeList()
	data, err := json.Marshal(Job{ExecutionID: "exec-1", Event: coordinator.Event{Bucket: "docs", Key: "uploads/a.pdf"}})
	require.NoError(t, err)
	list.LPush(context.Background(), DefaultKey, data)

	ctx, cancel := context.WithCancel(context.Background())
	runner := &testRunner{}
	w := newWorker(list, "", runner, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.jobs) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_BacksOffWhenRedisFails(t *testing.T) {
	list := newFakeList()
	list.popErr = errors.New("dial tcp: connection refused")

	w := newWorker(list, "", &testRunner{}, nil)
	w.errorDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, w.Run(ctx))
	assert.Less(t, time.Since(start), time.Second, "cancellation interrupts the pause")

	list.mu.Lock()
	defer list.mu.Unlock()
	assert.GreaterOrEqual(t, list.pops, 2)
	assert.LessOrEqual(t, list.pops, 4, "failed polls are spaced by the error delay")
}
