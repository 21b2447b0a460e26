package core

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior for transient repository errors
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
	Backoff    float64 // Exponential backoff multiplier
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		Delay:      time.Second,
		Backoff:    2.0,
		MaxDelay:   30 * time.Second,
	}
}

// Retry runs fn, retrying transient errors with exponential backoff.
// Non-transient errors and context cancellation stop the loop immediately.
func Retry(ctx context.Context, config *RetryConfig, op string, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	delay := config.Delay
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return NewError(RepositoryError).
				WithOperation(op).
				WithCause(err).
				Build()
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Backoff)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return lastErr
}
