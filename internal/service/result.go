package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadline is reported when a collaborator call outlives its deadline.
var ErrDeadline = errors.New("call deadline exceeded")

// Outcome is the normalized result of one collaborator call.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Or returns the value on success and def otherwise.
func (o Outcome[T]) Or(def T) T {
	if o.Err != nil {
		return def
	}
	return o.Value
}

// callWithDeadline runs fn with a context bounded by timeout and returns as
// soon as fn finishes or the deadline passes, whichever is first. A fn that
// ignores cancellation keeps running in the background and its late result
// is discarded. Panics inside fn are converted into errors.
func callWithDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Outcome[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome[T]{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- Outcome[T]{Value: v, Err: err}
	}()

	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		return Outcome[T]{Err: fmt.Errorf("%w: %w", ErrDeadline, ctx.Err())}
	}
}
