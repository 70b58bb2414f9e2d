package notifications_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/notifications"
)

type recorder struct {
	mu   sync.Mutex
	got  []notifications.Notification
	fail bool
}

func (r *recorder) Deliver(_ context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestDispatcherDelivers(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := notifications.NewDispatcher(rec)

	for range 5 {
		assert.True(t, d.Dispatch(notifications.Notification{Kind: notifications.KindPaymentFailed, UserID: "u1"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 5, rec.count())
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: true}
	var failures atomic.Int32
	d := notifications.NewDispatcher(rec, notifications.WithFailureHook(func(notifications.Notification, error) {
		failures.Add(1)
	}))

	assert.True(t, d.Dispatch(notifications.Notification{Kind: notifications.KindSubscriptionCancelled, UserID: "u1"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, int32(1), failures.Load())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	blocking := notifications.DelivererFunc(func(ctx context.Context, _ notifications.Notification) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	var dropped atomic.Int32
	d := notifications.NewDispatcher(blocking,
		notifications.WithWorkers(1),
		notifications.WithQueueSize(1),
		notifications.WithDropHook(func(notifications.Notification) { dropped.Add(1) }),
	)

	accepted := 0
	for range 10 {
		if d.Dispatch(notifications.Notification{Kind: notifications.KindPlanChanged}) {
			accepted++
		}
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, int32(10-accepted), dropped.Load())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	t.Parallel()

	d := notifications.NewDispatcher(notifications.NoOp{})
	require.NoError(t, d.Close(context.Background()))
	assert.False(t, d.Dispatch(notifications.Notification{Kind: notifications.KindPaymentFailed}))
}

func TestMultiJoinsErrors(t *testing.T) {
	t.Parallel()

	ok := &recorder{}
	bad := &recorder{fail: true}
	err := notifications.Multi{ok, bad}.Deliver(context.Background(), notifications.Notification{})
	assert.Error(t, err)
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())
}
