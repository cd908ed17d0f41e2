package quote

import (
	"context"
	"time"
)

// WithRetry runs fn up to one initial attempt plus len(backoffs)
// retries, sleeping the next backoff between attempts. Only retryable
// failures are retried, an invalid ticker will not become valid by
// waiting.
func WithRetry(ctx context.Context, backoffs []time.Duration, fn func() (*Snapshot, *FetchError)) (*Snapshot, *FetchError) {
	var last *FetchError
	for attempt := 0; attempt <= len(backoffs); attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffs[attempt-1]); err != nil {
				return nil, last
			}
		}
		snap, ferr := fn()
		if ferr == nil {
			return snap, nil
		}
		last = ferr
		if !ferr.Retryable() {
			break
		}
	}
	return nil, last
}

// DefaultBackoffs is the retry schedule the dashboard's manual retry
// action uses. Each wait doubles the previous one.
var DefaultBackoffs = []time.Duration{2 * time.Second, 4 * time.Second}
