package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Retrying retries transient gateway failures a bounded number of times.
// ErrNotFound, ErrInvalidKey, unknown containers and context cancellation
// are not retried.
type Retrying struct {
	next       Gateway
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewRetrying wraps next. maxRetries counts attempts after the first one.
func NewRetrying(next Gateway, maxRetries int) *Retrying {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retrying{next: next, maxRetries: uint64(maxRetries), newBackOff: newBackoff}
}

// UseBackOff replaces the delay policy. Intended for tests.
func (r *Retrying) UseBackOff(fn func() backoff.BackOff) { r.newBackOff = fn }

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.Reset()
	return b
}

func (r *Retrying) Exists(ctx context.Context, c Container, key string) (bool, error) {
	var found bool
	err := r.do(ctx, "exists", c, key, func() error {
		var err error
		found, err = r.next.Exists(ctx, c, key)
		return err
	})
	return found, err
}

func (r *Retrying) Fetch(ctx context.Context, c Container, key, destPath string) error {
	return r.do(ctx, "fetch", c, key, func() error {
		return r.next.Fetch(ctx, c, key, destPath)
	})
}

func (r *Retrying) Put(ctx context.Context, c Container, key, srcPath string) error {
	return r.do(ctx, "put", c, key, func() error {
		return r.next.Put(ctx, c, key, srcPath)
	})
}

func (r *Retrying) do(ctx context.Context, op string, c Container, key string, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	operation := func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		log.Warn().Err(err).Str("op", op).Str("container", string(c)).Str("key", key).
			Dur("retry_in", delay).Msg("object store call failed, retrying")
	}
	return backoff.RetryNotify(operation, policy, notify) //nolint:wrapcheck
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrUnknownContainer) &&
		!errors.Is(err, ErrInvalidKey) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
