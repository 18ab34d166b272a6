package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // linear backoff: attempt * Delay

	// OnRetry, when set, sees every failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// Do runs fn until it succeeds, the attempts run out or ctx is cancelled.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			return fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		delay := p.Delay
		if p.Backoff {
			delay = time.Duration(attempt) * p.Delay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
