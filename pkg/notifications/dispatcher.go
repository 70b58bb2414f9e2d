package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Dispatcher delivers notifications asynchronously.
type Dispatcher struct {
	deliverer Deliverer
	log       *slog.Logger
	queue     chan Notification
	timeout   time.Duration
	workers   int
	onDrop    func(Notification)
	onFailure func(Notification, error)

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithQueueSize sets how many notifications may wait for delivery.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDeliveryTimeout bounds a single delivery attempt.
func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithDropHook is called when the queue is full or closed.
func WithDropHook(fn func(Notification)) DispatcherOption {
	return func(d *Dispatcher) { d.onDrop = fn }
}

// WithFailureHook is called after a failed delivery has been logged.
func WithFailureHook(fn func(Notification, error)) DispatcherOption {
	return func(d *Dispatcher) { d.onFailure = fn }
}

// NewDispatcher starts the delivery workers. Panics when deliverer is nil.
func NewDispatcher(deliverer Deliverer, opts ...DispatcherOption) *Dispatcher {
	if deliverer == nil {
		panic("notifications: deliverer cannot be nil")
	}

	d := &Dispatcher{
		deliverer: deliverer,
		log:       logger.Nop(),
		queue:     make(chan Notification, 256),
		timeout:   10 * time.Second,
		workers:   2,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	for range d.workers {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch enqueues n without blocking. It reports whether n was accepted.
func (d *Dispatcher) Dispatch(n Notification) bool {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	select {
	case <-d.done:
		d.drop(n, "dispatcher closed")
		return false
	default:
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.drop(n, "queue full")
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() { close(d.done) })

	finished := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.deliverer.Deliver(ctx, n); err != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "notification delivery failed",
			logger.Component("notifications"),
			slog.String("kind", string(n.Kind)),
			logger.UserID(n.UserID),
			logger.Error(err),
		)
		if d.onFailure != nil {
			d.onFailure(n, err)
		}
	}
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.log.LogAttrs(context.Background(), slog.LevelWarn, "notification dropped",
		logger.Component("notifications"),
		slog.String("kind", string(n.Kind)),
		slog.String("reason", reason),
		logger.UserID(n.UserID),
	)
	if d.onDrop != nil {
		d.onDrop(n)
	}
}
