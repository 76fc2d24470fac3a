package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/config"
	"github.com/poiesic/docpipe/coordinator"
	"github.com/poiesic/docpipe/coordinator/temporal"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/queue"
	"github.com/poiesic/docpipe/replay"
	"github.com/poiesic/docpipe/storage/minio"
	"github.com/poiesic/docpipe/trigger"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

const (
	executorLocal    = "local"
	executorQueue    = "queue"
	executorTemporal = "temporal"
)

// openSystem loads the configuration named by --config and builds the
// system from it.
func openSystem(c *cli.Context) (*docpipe.System, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	sys, err := docpipe.Open(cfg, docpipe.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open system: %w", err)
	}
	return sys, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func processCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a PDF file is required")
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if err := sys.EnsureBucket(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ev := coordinator.Event{
		Bucket: sys.Bucket(),
		Key:    sys.Coordinator().Trigger().Prefix + filepath.Base(path),
	}
	if err := sys.Store().Put(ctx, ev.Bucket, ev.Key, data, "application/pdf"); err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	return runEvent(ctx, c.App.Writer, sys, ev)
}

func runCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return runEvent(ctx, c.App.Writer, sys, coordinator.Event{Bucket: sys.Bucket(), Key: c.String("key")})
}

func runEvent(ctx context.Context, w io.Writer, sys *docpipe.System, ev coordinator.Event) error {
	res, err := sys.Coordinator().Run(ctx, ev)
	if res != nil {
		fmt.Fprintf(w, "Execution: %s\n", res.ExecutionID)
		fmt.Fprintf(w, "State: %s\n", res.State)
		if res.FailedStage != "" {
			fmt.Fprintf(w, "Failed stage: %s\n", res.FailedStage)
		}
		if key := res.SummaryKey(); key != "" {
			fmt.Fprintf(w, "Summary: %s/%s\n", ev.Bucket, key)
		}
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return nil
}

func stageCommand(c *cli.Context) error {
	name, err := core.ParseStageName(c.String("stage"))
	if err != nil {
		return err
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := signalContext()
	defer cancel()

	stage, err := sys.Pipeline().Stage(name)
	if err != nil {
		return err
	}
	in, err := pipeline.InputFor(ctx, sys.Store(), sys.Bucket(), c.String("doc"), name)
	if err != nil {
		return err
	}
	out, err := stage.Run(ctx, in)
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return writeJSON(c.App.Writer, out)
}

func replayCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := signalContext()
	defer cancel()

	replayer := replay.NewReplayer(sys.Store(), sys.Coordinator(), &replay.Config{
		Bucket:         sys.Bucket(),
		BatchSize:      c.Int("batch-size"),
		Workers:        c.Int("workers"),
		ReportInterval: c.Int("report-interval"),
	}, os.Stderr)

	fmt.Fprintf(os.Stderr, "Bucket: %s\n", sys.Bucket())
	fmt.Fprintln(os.Stderr)

	report, err := replayer.Run(ctx)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	for key, msg := range report.Failures {
		fmt.Fprintf(c.App.Writer, "FAILED %s: %s\n", key, msg)
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d uploads failed", report.Failed(), report.Total)
	}
	return nil
}

func lineageCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	statuses, err := pipeline.Lineage(c.Context, sys.Store(), sys.Bucket(), c.String("doc"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tKEY\tEXISTS\tTIMESTAMP")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.Stage, s.Key, s.Exists, s.Timestamp)
	}
	return tw.Flush()
}

func runsCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	runs, err := sys.Runs().ListRuns(c.Context, c.String("doc"))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTION\tDOCUMENT\tSTATE\tFAILED STAGE\tUPDATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ExecutionID, r.DocumentID, r.State, r.FailedStage, r.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func watchCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if err := sys.EnsureBucket(ctx); err != nil {
		return err
	}

	starter, release, err := newStarter(c, sys)
	if err != nil {
		return err
	}
	defer release()

	watcher, err := trigger.NewInboxWatcher(c.String("dir"), sys.Bucket(), sys.Store(), starter, sys.Coordinator().Trigger(),
		trigger.WithSettle(c.Duration("settle")),
		trigger.WithInboxLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

func listenCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	store, ok := sys.Store().(*minio.BlobStore)
	if !ok {
		return fmt.Errorf("listen requires storage.driver = %s", config.StorageMinio)
	}

	ctx, cancel := signalContext()
	defer cancel()
	if err := sys.EnsureBucket(ctx); err != nil {
		return err
	}

	starter, release, err := newStarter(c, sys)
	if err != nil {
		return err
	}
	defer release()

	listener := trigger.NewBucketListener(store.Client(), sys.Bucket(), starter, sys.Coordinator().Trigger(), slog.Default())
	return listener.Run(ctx)
}

func workerCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	rdb := newRedis(sys.Config())
	defer rdb.Close()

	ctx, cancel := signalContext()
	defer cancel()

	w := queue.NewWorker(rdb, sys.Config().Redis.Queue, sys.Coordinator(), slog.Default())
	return w.Run(ctx)
}

func enqueueCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	rdb := newRedis(cfg)
	defer rdb.Close()

	q := queue.New(rdb, cfg.Redis.Queue, docpipe.Trigger(cfg), slog.Default())
	id, err := q.Start(c.Context, coordinator.Event{Bucket: cfg.Storage.Bucket, Key: c.String("key")})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, id)
	return nil
}

func temporalWorkerCommand(c *cli.Context) error {
	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	tc, err := dialTemporal(sys.Config())
	if err != nil {
		return err
	}
	defer tc.Close()

	w := temporal.NewWorker(tc, sys.Config().Temporal.TaskQueue, &temporal.Activities{Pipeline: sys.Pipeline()})
	return w.Run(worker.InterruptCh())
}

// newStarter returns the executor named by --executor and a function that
// releases it.
func newStarter(c *cli.Context, sys *docpipe.System) (trigger.Starter, func(), error) {
	cfg := sys.Config()
	switch c.String("executor") {
	case executorLocal:
		exec, err := sys.NewLocalExecutor(c.Int("workers"))
		if err != nil {
			return nil, nil, err
		}
		return exec, func() {
			exec.Wait()
			exec.Release()
		}, nil
	case executorQueue:
		rdb := newRedis(cfg)
		q := queue.New(rdb, cfg.Redis.Queue, sys.Coordinator().Trigger(), slog.Default())
		return q, func() { rdb.Close() }, nil
	case executorTemporal:
		tc, err := dialTemporal(cfg)
		if err != nil {
			return nil, nil, err
		}
		return temporal.NewStarter(tc, cfg.Temporal.TaskQueue, sys.Coordinator().Trigger(), temporalSettings(cfg)), tc.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown executor %q: must be one of local, queue, temporal", c.String("executor"))
}

func newRedis(cfg *config.Config) *redis.Client {
	return queue.NewClient(queue.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func dialTemporal(cfg *config.Config) (client.Client, error) {
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.Temporal.Host, err)
	}
	return tc, nil
}

func temporalSettings(cfg *config.Config) temporal.Settings {
	s := temporal.DefaultSettings()
	s.MaxAttempts = int32(cfg.Pipeline.MaxAttempts)
	s.InitialInterval = cfg.Pipeline.RetryDelay
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
