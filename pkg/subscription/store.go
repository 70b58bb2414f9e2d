package subscription

import (
	"context"

	"github.com/google/uuid"
)

// UpdateOptions controls which column groups Update writes.
type UpdateOptions struct {
	// ResetWindow also writes the usage window: period bounds, last reset
	// and a zeroed counter. Without it Update leaves usage columns to the
	// meter so concurrent increments are never overwritten.
	ResetWindow bool
	// Period writes only the period bounds, keeping the counter and the
	// last reset. Ignored when ResetWindow is set.
	Period bool
}

// Store persists subscriptions. Implementations must honour a transaction
// carried in ctx and lock rows returned by GetByProviderID for the rest of it.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetByProviderID(ctx context.Context, provider Provider, providerSubscriptionID string) (*Subscription, error)
	// FindActiveRecurring returns the user's current recurring row. Suspended
	// rows whose provider status is active count.
	FindActiveRecurring(ctx context.Context, userID string) (*Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)
	UserSuspended(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, sub *Subscription) error
	Update(ctx context.Context, sub *Subscription, opts UpdateOptions) error
}
