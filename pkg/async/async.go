package async

import (
	"context"
	"errors"
	"time"
)

// Future is the eventual result of a function started by Go.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Go starts fn in its own goroutine. If ctx is already done fn is not called
// and the future completes with ctx.Err().
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}
		f.result, f.err = fn(ctx)
	}()
	return f
}

// Await blocks until the future completes or ctx is done.
func (f *Future[U]) Await(ctx context.Context) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Done reports whether the future has completed.
func (f *Future[U]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Call runs fn with a deadline of timeout. Deadline expiry, whether observed
// by fn or not, is reported as ErrTimeout. Cancellation of the parent ctx is
// returned as is.
func Call[U any](ctx context.Context, timeout time.Duration, fn func(context.Context) (U, error)) (U, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrTimeout)
	defer cancel()

	res, err := Go(ctx, fn).Await(ctx)
	if err != nil && errors.Is(context.Cause(ctx), ErrTimeout) {
		var zero U
		return zero, errors.Join(ErrTimeout, err)
	}
	return res, err
}

// WaitAll awaits every future in order and stops at the first error.
func WaitAll[U any](ctx context.Context, futures ...*Future[U]) ([]U, error) {
	results := make([]U, len(futures))
	for i, f := range futures {
		res, err := f.Await(ctx)
		if err != nil {
			return results, err
		}
		results[i] = res
	}
	return results, nil
}
