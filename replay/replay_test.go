package replay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRunner implements Runner for testing
type testRunner struct {
	mu     sync.Mutex
	keys   []string
	failOn string
}

func (r *testRunner) Run(ctx context.Context, ev coordinator.Event) (*coordinator.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, ev.Key)
	if ev.Key == r.failOn {
		return &coordinator.Result{State: coordinator.StateFailed}, errors.New("embedding stage failed")
	}
	return &coordinator.Result{State: coordinator.StateCompleted}, nil
}

func (r *testRunner) Trigger() coordinator.Trigger {
	return coordinator.DefaultTrigger()
}

func newStoreWith(t *testing.T, keys ...string) storage.BlobStore {
	t.Helper()
	blobs, _, backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	for _, key := range keys {
		require.NoError(t, blobs.Put(context.Background(), "docs", key, []byte("%PDF"), "application/pdf"))
	}
	return blobs
}

func TestUploadIterator_ForEach(t *testing.T) {
	store := newStoreWith(t,
		"uploads/c.pdf", "uploads/a.pdf", "uploads/b.PDF", "uploads/d.pdf", "uploads/e.pdf",
		"uploads/readme.txt", "extracted/a.json",
	)
	it := NewUploadIterator(store, "docs", coordinator.DefaultTrigger(), 2)

	var batches [][]string
	err := it.ForEach(context.Background(), func(evs []coordinator.Event) error {
		keys := []string{}
		for _, ev := range evs {
			keys = append(keys, ev.Key)
		}
		batches = append(batches, keys)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"uploads/a.pdf", "uploads/b.PDF"},
		{"uploads/c.pdf", "uploads/d.pdf"},
		{"uploads/e.pdf"},
	}, batches)
}

func TestUploadIterator_StopsOnError(t *testing.T) {
	store := newStoreWith(t, "uploads/a.pdf", "uploads/b.pdf")
	it := NewUploadIterator(store, "docs", coordinator.DefaultTrigger(), 1)

	calls := 0
	boom := errors.New("boom")
	err := it.ForEach(context.Background(), func([]coordinator.Event) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestReplayer_Run(t *testing.T) {
	store := newStoreWith(t, "uploads/a.pdf", "uploads/b.pdf", "uploads/c.pdf")
	runner := &testRunner{failOn: "uploads/b.pdf"}

	var out bytes.Buffer
	cfg := &Config{Bucket: "docs", BatchSize: 2, Workers: 2, ReportInterval: 1}
	report, err := NewReplayer(store, runner, cfg, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed())
	assert.Contains(t, report.Failures["uploads/b.pdf"], "embedding stage failed")
	assert.ElementsMatch(t, []string{"uploads/a.pdf", "uploads/b.pdf", "uploads/c.pdf"}, runner.keys)

	assert.Contains(t, out.String(), "Starting replay of 3 uploads")
	assert.Contains(t, out.String(), "3/3 (100.0%), 1 failed")
	assert.Contains(t, out.String(), "Replay complete. 2 succeeded, 1 failed")
}

func TestReplayer_Empty(t *testing.T) {
	var out bytes.Buffer
	report, err := NewReplayer(newStoreWith(t), &testRunner{}, &Config{Bucket: "docs"}, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Contains(t, out.String(), "No uploads found in docs")
}

func TestProgressTracker(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 2)

	tracker.Done(false) // ignored before Start
	tracker.Start()
	tracker.Done(false)
	assert.Empty(t, buf.String(), "below report interval")
	tracker.Done(true)
	assert.Contains(t, buf.String(), "2/4 (50.0%), 1 failed")

	tracker.Finish()
	assert.Contains(t, buf.String(), "4/4 (100.0%)")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}
