// Package retry runs idempotent calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how long and how often a call is retried.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	// MaxAttempts counts the first call. Zero means no attempt limit.
	MaxAttempts uint64
}

// DefaultPolicy is three attempts within ten seconds.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsed:      10 * time.Second,
		MaxAttempts:     3,
	}
}

// NoRetry makes a single attempt.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, wait time.Duration)

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retryable reports whether err may succeed on another attempt. Context
// errors, Permanent errors and errors whose Temporary method reports false
// are final; anything else is retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return true
}

// Do calls op until it succeeds, returns a non-retryable error, or the
// policy is exhausted. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = p.MaxElapsed
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.MaxAttempts-1)
	}
	b = backoff.WithContext(b, ctx)

	var notifyFn backoff.Notify
	if notify != nil {
		notifyFn = backoff.Notify(notify)
	}

	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op(ctx)
		if err != nil && !Retryable(err) {
			var permanent *backoff.PermanentError
			if errors.As(err, &permanent) {
				return v, err
			}
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b, notifyFn)
}
