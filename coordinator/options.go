package coordinator

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

type settings struct {
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	trigger     Trigger
	now         func() time.Time
	newID       func(key string) string
}

func defaultSettings() *settings {
	return &settings{
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		trigger:     DefaultTrigger(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       ExecutionName,
	}
}

// Option configures a Coordinator.
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

// WithRetry sets how many times a stage is attempted and the initial
// backoff between attempts.
// Default is 3 attempts starting at one second.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *settings) error {
		if maxAttempts <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, maxAttempts)
		}
		if baseDelay < 0 {
			baseDelay = 0
		}
		s.maxAttempts = maxAttempts
		s.retryDelay = baseDelay
		return nil
	}
}

// WithTrigger replaces the default upload trigger.
func WithTrigger(t Trigger) Option {
	return func(s *settings) error {
		s.trigger = t
		return nil
	}
}

// WithClock overrides the time source of run records.
func WithClock(now func() time.Time) Option {
	return func(s *settings) error {
		if now != nil {
			s.now = func() time.Time { return now().UTC() }
		}
		return nil
	}
}

// WithExecutionNames overrides how execution ids are derived from object keys.
func WithExecutionNames(fn func(key string) string) Option {
	return func(s *settings) error {
		if fn != nil {
			s.newID = fn
		}
		return nil
	}
}
