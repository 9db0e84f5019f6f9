// Package retry implements the engine's failure policy for transient IO:
// "Retry is permitted only for transient IO; anchor/doc-not-found errors
// are never retried." It paces retries with golang.org/x/time/rate rather
// than a bare exponential-backoff sleep loop.
package retry

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/scribehq/dle/internal/dlerrors"
)

// Policy controls how many attempts Do makes and how fast it paces them.
type Policy struct {
	MaxAttempts int
	Limiter     *rate.Limiter
}

// Default returns a policy allowing 3 attempts, paced at one every 100ms
// with a burst of 1 (no thundering-herd retry storms across concurrent
// callers sharing a Policy).
func Default() Policy {
	return Policy{MaxAttempts: 3, Limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1)}
}

// Do runs fn, retrying only when it returns an error coded IO_TEMPORARY, up
// to MaxAttempts total attempts. Any other error (or success) returns
// immediately. The limiter paces the wait before each retry (not the first
// attempt); a cancelled ctx stops further retries and returns ctx.Err().
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if dlerrors.CodeOf(lastErr) != dlerrors.IOTemporary {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}
	return lastErr
}
