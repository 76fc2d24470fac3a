package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/storage"
)

const defaultSettle = 500 * time.Millisecond

// ErrInboxRequired is returned when no inbox directory is given.
var ErrInboxRequired = errors.New("inbox directory required")

// InboxWatcher uploads files dropped into a directory and starts a run for
// each. A file is handled once it has seen no writes for the settle period.
type InboxWatcher struct {
	dir     string
	bucket  string
	store   storage.BlobStore
	starter Starter
	trigger coordinator.Trigger
	settle  time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// InboxOption configures an InboxWatcher.
type InboxOption func(*InboxWatcher)

// WithSettle sets how long a file must be quiet before it is uploaded.
func WithSettle(d time.Duration) InboxOption {
	return func(w *InboxWatcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithInboxLogger sets a custom logger.
func WithInboxLogger(logger *slog.Logger) InboxOption {
	return func(w *InboxWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewInboxWatcher creates a watcher for dir uploading into bucket.
func NewInboxWatcher(dir, bucket string, store storage.BlobStore, starter Starter, trigger coordinator.Trigger, opts ...InboxOption) (*InboxWatcher, error) {
	if dir == "" {
		return nil, ErrInboxRequired
	}
	w := &InboxWatcher{
		dir:     dir,
		bucket:  bucket,
		store:   store,
		starter: starter,
		trigger: trigger,
		settle:  defaultSettle,
		logger:  slog.Default(),
		pending: map[string]*time.Timer{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "inbox", "dir", dir)
	return w, nil
}

// Run watches the inbox until ctx is cancelled. Files already present are
// not processed.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching inbox")

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			w.wg.Wait()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(ctx, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

func (w *InboxWatcher) handleFsEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return
	}
	key := w.trigger.Prefix + name
	if !w.trigger.Matches(coordinator.Event{Bucket: w.bucket, Key: key}) {
		w.logger.Debug("ignoring file", "name", name)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	// A timer that already fired owns its own wg slot; only a stopped
	// timer may be rearmed.
	if t, ok := w.pending[ev.Name]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[ev.Name] == t {
			delete(w.pending, ev.Name)
		}
		w.mu.Unlock()
		if _, err := w.Submit(ctx, ev.Name); err != nil {
			w.logger.Error("failed to submit file", "path", ev.Name, "err", err)
		}
	})
	w.pending[ev.Name] = t
}

func (w *InboxWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, name)
	}
}

// Submit uploads the file at path under the upload prefix and starts an
// execution for it.
func (w *InboxWatcher) Submit(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	ev := coordinator.Event{Bucket: w.bucket, Key: w.trigger.Prefix + filepath.Base(path)}
	if err := w.store.Put(ctx, ev.Bucket, ev.Key, data, "application/pdf"); err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	id, err := w.starter.Start(ctx, ev)
	if err != nil {
		return "", err
	}
	w.logger.Info("submitted file", "key", ev.Key, "execution_id", id)
	return id, nil
}
