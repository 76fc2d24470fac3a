package trigger

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/poiesic/docpipe/coordinator"
)

// ObjectCreated is the notification event the listener subscribes to.
const ObjectCreated = "s3:ObjectCreated:*"

// notifier is the subset of *minio.Client the listener uses.
type notifier interface {
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info
}

// BucketListener starts an execution for every object created in a bucket
// that the trigger accepts.
type BucketListener struct {
	client  notifier
	bucket  string
	starter Starter
	trigger coordinator.Trigger
	logger  *slog.Logger
}

// NewBucketListener creates a listener on bucket. client is typically a
// *minio.Client.
func NewBucketListener(client notifier, bucket string, starter Starter, trigger coordinator.Trigger, logger *slog.Logger) *BucketListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &BucketListener{
		client:  client,
		bucket:  bucket,
		starter: starter,
		trigger: trigger,
		logger:  logger.With("component", "listener", "bucket", bucket),
	}
}

// Run listens until ctx is cancelled or the notification stream ends.
func (l *BucketListener) Run(ctx context.Context) error {
	// Extensions are filtered by the trigger, case-insensitively.
	ch := l.client.ListenBucketNotification(ctx, l.bucket, l.trigger.Prefix, "", []string{ObjectCreated})
	l.logger.Info("listening for uploads", "prefix", l.trigger.Prefix)
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			if info.Err != nil {
				l.logger.Warn("notification error", "err", info.Err)
				continue
			}
			l.handle(ctx, info.Records)
		}
	}
}

func (l *BucketListener) handle(ctx context.Context, records []notification.Event) {
	for _, rec := range records {
		if !strings.HasPrefix(rec.EventName, "s3:ObjectCreated:") {
			continue
		}
		// Keys arrive URL-encoded.
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			l.logger.Warn("undecodable key", "key", rec.S3.Object.Key, "err", err)
			continue
		}
		bucket := rec.S3.Bucket.Name
		if bucket == "" {
			bucket = l.bucket
		}
		ev := coordinator.Event{Bucket: bucket, Key: key}
		if !l.trigger.Matches(ev) {
			l.logger.Debug("ignoring object", "key", key)
			continue
		}
		id, err := l.starter.Start(ctx, ev)
		if err != nil {
			l.logger.Error("failed to start execution", "key", key, "err", err)
			continue
		}
		l.logger.Info("started execution", "key", key, "execution_id", id)
	}
}
