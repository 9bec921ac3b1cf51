// Package retry runs an operation under an explicit, injectable retry policy.
package retry

import (
	"context"
	"strings"
	"time"
)

// Policy describes how an operation is retried.
//
// Delay returns the wait before attempt n+1 given that attempt n (1-based)
// failed. Retryable decides whether an error may be retried at all; a nil
// Retryable retries every error. Sleep is the waiting primitive and exists
// so tests can observe delays without real time passing.
type Policy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
	Retryable   func(error) bool
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Fixed returns a Policy with a constant delay between attempts.
func Fixed(maxAttempts int, delay time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       func(int) time.Duration { return delay },
		Retryable:   retryable,
	}
}

// Do calls op until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. It returns the last error and the number of
// attempts made. Context cancellation during a wait ends the loop with the
// context's error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) (attempts int, err error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx, attempt)
		attempts = attempt
		if err == nil {
			return attempts, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return attempts, err
		}
		if attempt == maxAttempts {
			break
		}
		var d time.Duration
		if p.Delay != nil {
			d = p.Delay(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return attempts, serr
		}
	}
	return attempts, err
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsOverloaded reports whether err looks like a transient model overload:
// its message mentions "overloaded" (any case) or a 503 status.
func IsOverloaded(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(strings.ToLower(msg), "overloaded") || strings.Contains(msg, "503")
}
