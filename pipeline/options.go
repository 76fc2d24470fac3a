package pipeline

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/poiesic/docpipe/chunker"
	"github.com/poiesic/docpipe/index"
	"golang.org/x/time/rate"
)

const defaultCallTimeout = 30 * time.Second

// settings holds the configuration shared by all stages.
type settings struct {
	logger       *slog.Logger
	callTimeout  time.Duration
	chunkSize    int
	chunkOverlap int
	inlineChunks bool
	poolSize     int
	rateLimit    rate.Limit
	rateBurst    int
	indexName    string
	now          func() time.Time
}

func defaultSettings() *settings {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &settings{
		logger:       slog.Default(),
		callTimeout:  defaultCallTimeout,
		chunkSize:    chunker.DefaultSize,
		chunkOverlap: chunker.DefaultOverlap,
		poolSize:     poolSize,
		rateLimit:    rate.Inf,
		rateBurst:    1,
		indexName:    index.DefaultName,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func applyOptions(opts []Option) (*settings, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Option configures a stage or a Pipeline.
type Option func(*settings) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCallTimeout bounds every storage, embedding and index call.
// Default is 30 seconds.
func WithCallTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d <= 0 {
			return fmt.Errorf("%w: call timeout must be positive", ErrInvalidOption)
		}
		s.callTimeout = d
		return nil
	}
}

// WithChunkWindow sets the chunk size and overlap in characters.
// Default is 1000 / 100.
func WithChunkWindow(size, overlap int) Option {
	return func(s *settings) error {
		if size <= 0 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: %w: size=%d overlap=%d", ErrInvalidOption, chunker.ErrInvalidWindow, size, overlap)
		}
		s.chunkSize = size
		s.chunkOverlap = overlap
		return nil
	}
}

// WithInlineChunks makes the extraction stage copy its chunks into the
// output payload in addition to the artifact.
func WithInlineChunks(inline bool) Option {
	return func(s *settings) error {
		s.inlineChunks = inline
		return nil
	}
}

// WithPoolSize sets the number of concurrent embedding calls.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *settings) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithRateLimit caps embedding calls per second. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *settings) error {
		if perSecond <= 0 {
			s.rateLimit = rate.Inf
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		s.rateLimit = rate.Limit(perSecond)
		s.rateBurst = burst
		return nil
	}
}

// WithIndexName sets the index records are upserted into.
// Default is "documents".
func WithIndexName(name string) Option {
	return func(s *settings) error {
		if name == "" {
			return fmt.Errorf("%w: index name is empty", ErrInvalidOption)
		}
		s.indexName = name
		return nil
	}
}

// WithClock overrides the time source used for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) error {
		if now != nil {
			s.now = func() time.Time { return now().UTC() }
		}
		return nil
	}
}
