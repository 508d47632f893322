package downloader

import (
	"context"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts int
	// Delay is the fixed wait between attempts. Zero retries immediately.
	Delay time.Duration
}

// Retry calls fn until it succeeds, shouldRetry rejects the error, or
// MaxAttempts is reached. The last error is returned. A nil shouldRetry
// retries every error.
func Retry[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(attempt int) (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			break
		}
		if attempt == attempts {
			break
		}

		if cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(cfg.Delay):
			}
		} else if err := ctx.Err(); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}
