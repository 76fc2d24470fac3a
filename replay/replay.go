// Package replay re-runs the pipeline over uploads already in storage, for
// example after changing the embedding model or chunk window.
package replay

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/storage"
)

// Config holds configuration for a replay.
type Config struct {
	// Bucket holds the uploads to replay
	Bucket string

	// BatchSize is the number of uploads listed per batch
	BatchSize int

	// Workers is the number of documents processed concurrently
	Workers int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Workers:        2,
		ReportInterval: 10,
	}
}

// Runner runs the pipeline for one upload.
type Runner interface {
	Run(ctx context.Context, ev coordinator.Event) (*coordinator.Result, error)
	Trigger() coordinator.Trigger
}

// Report summarizes a replay.
type Report struct {
	Total     int
	Succeeded int
	Failures  map[string]string
}

// Failed returns the number of uploads whose run failed.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Replayer re-runs every matching upload in a bucket.
type Replayer struct {
	runner   Runner
	config   *Config
	progress io.Writer
	iterator *UploadIterator
}

// NewReplayer creates a new replayer.
// progress: where to write progress output (typically os.Stderr)
func NewReplayer(store storage.BlobStore, runner Runner, config *Config, progress io.Writer) *Replayer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}

	return &Replayer{
		runner:   runner,
		config:   config,
		progress: progress,
		iterator: NewUploadIterator(store, config.Bucket, runner.Trigger(), config.BatchSize),
	}
}

// Run replays every upload. A failed document is recorded in the report
// and does not stop the replay; listing errors and cancellation do.
func (r *Replayer) Run(ctx context.Context) (*Report, error) {
	events, err := r.iterator.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	report := &Report{Total: len(events), Failures: map[string]string{}}
	if report.Total == 0 {
		fmt.Fprintf(r.progress, "No uploads found in %s\n", r.config.Bucket)
		return report, nil
	}

	fmt.Fprintf(r.progress, "Starting replay of %d uploads (workers: %d)\n", report.Total, r.config.Workers)

	pool, err := ants.NewPool(r.config.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	tracker := NewProgressTracker(r.progress, report.Total, r.config.ReportInterval)
	tracker.Start()

	var mu sync.Mutex
	err = r.iterator.ForEach(ctx, func(batch []coordinator.Event) error {
		var wg sync.WaitGroup
		for _, ev := range batch {
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				_, runErr := r.runner.Run(ctx, ev)

				mu.Lock()
				if runErr != nil {
					report.Failures[ev.Key] = runErr.Error()
				} else {
					report.Succeeded++
				}
				mu.Unlock()
				tracker.Done(runErr != nil)
			})
			if submitErr != nil {
				wg.Done()
				wg.Wait()
				return submitErr
			}
		}
		wg.Wait()
		return nil
	})
	if err != nil {
		return report, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Replay complete. %d succeeded, %d failed in %v\n",
		report.Succeeded, report.Failed(), elapsed.Round(time.Millisecond))

	return report, nil
}
