package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Retryable reports whether an error should be retried. Nil retries
	// everything that is not marked with Fatal.
	Retryable func(error) bool
	// Name is used in log lines and error messages.
	Name string
}

// Option is a functional option for retry configuration.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Name:         "operation",
	}
}

// Do executes the operation with exponential backoff retry. The operation
// receives the context so that in-flight calls observe cancellation.
//
// Errors wrapped with Fatal() or rejected by the Retryable classifier are
// returned immediately.
func Do(ctx context.Context, operation func(context.Context) error, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := log.FromContext(ctx).WithName("retry")
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("%s failed with non-retryable error: %w", cfg.Name, err)
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		logger.V(1).Info("retrying after error", "name", cfg.Name, "attempt", attempt+1, "delay", delay.String(), "error", err.Error())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled after %d attempts: %w", cfg.Name, attempt+1, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", cfg.Name, cfg.MaxRetries+1, lastErr)
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithRetryable sets the classifier for retryable errors.
func WithRetryable(fn func(error) bool) Option {
	return func(c *Config) {
		c.Retryable = fn
	}
}

// WithName labels the operation in logs and errors.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
