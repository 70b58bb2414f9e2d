package notifications

import (
	"context"
	"errors"
)

// Deliverer sends a notification through one channel.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi fans a notification out to several channels and joins their errors.
type Multi []Deliverer

func (m Multi) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoOp discards notifications.
type NoOp struct{}

func (NoOp) Deliver(context.Context, Notification) error { return nil }
