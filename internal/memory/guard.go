package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreTimeout is reported when a store call outlives the adapter deadline.
var ErrStoreTimeout = errors.New("memory store call timed out")

// guard runs fn under timeout and returns when fn finishes or the deadline
// passes, whichever is first. A store that ignores cancellation is left
// running and its late result dropped. Panics become errors.
func guard[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("memory store panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrStoreTimeout, ctx.Err())
	}
}
