// Package retryutil holds the small bounded-retry and interruptible-sleep
// helpers the account workers lean on between poll cycles.
package retryutil

import (
	"context"
	"time"
)

const defaultDelay = 2 * time.Second

// Do runs fn up to attempts times, sleeping delay between failures. It
// returns the last error, or nil as soon as one attempt succeeds. The
// context cancels both the in-flight attempt and the inter-attempt sleep.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			if !Sleep(ctx, delay) {
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// Sleep blocks for d or until ctx is cancelled, reporting whether the
// full duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
