package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/async"
)

func TestCallReturnsResult(t *testing.T) {
	t.Parallel()

	got, err := async.Call(context.Background(), time.Second, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestCallPropagatesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := async.Call(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, async.ErrTimeout)
}

func TestCallTimesOutWhenFunctionIgnoresContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := async.Call(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, async.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallTimesOutWhenFunctionHonoursContext(t *testing.T) {
	t.Parallel()

	_, err := async.Call(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, async.ErrTimeout)
}

func TestCallParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := async.Call(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, async.ErrTimeout)
}

func TestWaitAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	futures := []*async.Future[int]{
		async.Go(ctx, func(context.Context) (int, error) { return 1, nil }),
		async.Go(ctx, func(context.Context) (int, error) { return 2, nil }),
	}
	got, err := async.WaitAll(ctx, futures...)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	boom := errors.New("boom")
	f := async.Go(ctx, func(context.Context) (int, error) { return 0, boom })
	_, err = async.WaitAll(ctx, f)
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.Done())
}
