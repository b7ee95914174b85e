// Package retry provides a bounded retry helper with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// WithRetry retries an operation up to MaxAttempts additional times after
// the first try, doubling the delay between attempts and adding jitter.
type WithRetry struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// New returns a WithRetry with the given attempt budget and base delay.
func New(maxAttempts int, baseDelay time.Duration) WithRetry {
	return WithRetry{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
	}
}

// Do calls f until it succeeds, reports a non-retryable error, or the
// attempt budget is exhausted. f reports whether its error is worth
// retrying. Cancelling ctx aborts between attempts.
func (r WithRetry) Do(ctx context.Context, f func() (retry bool, err error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.5
	bo.MaxElapsedTime = 0

	op := func() error {
		needsRetry, err := f()
		if err == nil {
			return nil
		}
		if !needsRetry {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.MaxAttempts)), ctx))
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("retry aborted: %w", err)
	}
	return err
}
