// Package retry separates the retry schedule from the retry loop so the
// upstream client (capped exponential backoff) and the LLM classifier
// (fixed delay) share one implementation with different policies.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how often and how quickly an operation is retried.
// MaxRetries counts retries after the first attempt, so MaxRetries=3 allows
// four calls in total.
type Policy struct {
	MaxRetries int
	Base       time.Duration
	Cap        time.Duration
	Fixed      time.Duration // when set, overrides exponential growth
}

// Exponential builds the capped-backoff policy used against the upstream API.
func Exponential(maxRetries int, base, cap time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Base: base, Cap: cap}
}

// FixedDelay builds the constant-delay policy used for LLM calls.
func FixedDelay(maxRetries int, delay time.Duration) Policy {
	return Policy{MaxRetries: maxRetries, Fixed: delay}
}

// Delay returns the pause before retrying after the given attempt,
// counting attempts from 0: min(base<<attempt, cap).
func (p Policy) Delay(attempt int) time.Duration {
	if p.Fixed > 0 {
		return p.Fixed
	}
	if attempt < 0 {
		attempt = 0
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Cap > 0 && d >= p.Cap {
			return p.Cap
		}
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}
