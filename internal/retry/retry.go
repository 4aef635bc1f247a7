// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds a retry loop. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

type (
	// Operation is called once per attempt. attempt starts at 1.
	Operation[T any] func(ctx context.Context, attempt int) (T, error)

	// IsRetriable reports whether err from an attempt should be retried.
	IsRetriable func(error) bool
)

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := max(p.MaxAttempts, 1)

	var b backoff.BackOff = &backoff.StopBackOff{}
	if attempts > 1 {
		// WithMaxRetries treats 0 as unlimited.
		b = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(attempts-1))
	}

	return backoff.WithContext(b, ctx)
}

// Do calls op until it succeeds, returns an error isRetriable rejects, the
// policy runs out of attempts or ctx is done. There is no pause after the
// last attempt. When attempts run out the returned error wraps both
// ErrExhausted and the last error from op.
func Do[T any](ctx context.Context, policy Policy, op Operation[T], isRetriable IsRetriable) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var (
		attempt   int
		permanent bool
	)

	res, err := backoff.RetryWithData(func() (T, error) {
		attempt++

		res, err := op(ctx, attempt)
		if err == nil {
			return res, nil
		}

		if isRetriable == nil || !isRetriable(err) {
			permanent = true
			return zero, backoff.Permanent(err)
		}

		return zero, err
	}, policy.backOff(ctx))

	switch {
	case err == nil:
		return res, nil
	case permanent:
		return zero, err
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
}
