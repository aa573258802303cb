// Package retry provides the transient-failure retry and polling combinators
// shared by the platform adapters. Sleeping goes through an injectable
// SleepFunc so loops can be exercised without real timers.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Poll when no terminal state was observed.
var ErrExhausted = errors.New("retry attempts exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-timer SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// Policy bounds a retry or poll loop.
type Policy struct {
	MaxAttempts int           // total attempts, first one included
	Interval    time.Duration // wait before the second attempt
	Multiplier  float64       // <= 1 keeps the interval constant
	MaxInterval time.Duration // 0 means uncapped
	Sleep       SleepFunc
}

// Constant waits the same interval between attempts.
func Constant(attempts int, interval time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Interval: interval, Multiplier: 1}
}

// Exponential doubles the wait after every failed attempt.
func Exponential(attempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Interval: base, Multiplier: 2}
}

// WithSleep returns a copy of p using sleep.
func (p Policy) WithSleep(sleep SleepFunc) Policy {
	p.Sleep = sleep
	return p
}

// Delay returns the wait after the n-th failed attempt (n starts at 1).
func (p Policy) Delay(n int) time.Duration {
	d := p.Interval
	if p.Multiplier > 1 {
		for i := 1; i < n; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
			if p.MaxInterval > 0 && d >= p.MaxInterval {
				return p.MaxInterval
			}
		}
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		return p.MaxInterval
	}
	return d
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable; Do returns the wrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, or the attempts run out.
// The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	max := p.attempts()
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = op(ctx, attempt)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == max {
			break
		}
		if sErr := p.sleep(ctx, p.Delay(attempt)); sErr != nil {
			return sErr
		}
	}
	return err
}

// Poll calls check until it reports done, returns an error, or the attempts run out.
// An error from check is terminal and returned as is. Exhaustion returns the last
// observed value together with ErrExhausted.
func Poll[T any](ctx context.Context, p Policy, check func(ctx context.Context, attempt int) (T, bool, error)) (T, error) {
	max := p.attempts()
	var last T
	for attempt := 1; attempt <= max; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return last, ctxErr
		}
		v, done, err := check(ctx, attempt)
		last = v
		if err != nil {
			return v, err
		}
		if done {
			return v, nil
		}
		if attempt == max {
			break
		}
		if sErr := p.sleep(ctx, p.Delay(attempt)); sErr != nil {
			return last, sErr
		}
	}
	return last, ErrExhausted
}
