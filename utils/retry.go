package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      *slog.Logger
}

// Do executes fn up to MaxAttempts times with a fixed delay between attempts.
// It returns early when ctx is cancelled.
func (r *RetryConfig) Do(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < r.MaxAttempts {
			r.Logger.Warn("retrying operation",
				"op", operation, "attempt", attempt, "max", r.MaxAttempts,
				"delay", r.Delay, "err", lastErr)
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.MaxAttempts, lastErr)
}
