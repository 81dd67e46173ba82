package pipeline

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, waiting delay between calls, for as
// long as retryable accepts the returned error. fn receives the 1-based attempt.
func Retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
