package idempotency

import (
	"context"
	"errors"
	"time"
)

// Store persists markers. Claim must be an atomic insert-if-absent that
// honours the transaction carried in ctx.
type Store interface {
	Claim(ctx context.Context, provider, eventID string, at time.Time) (bool, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Transactor runs fn in a transaction, committing only when fn returns nil.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ledger guards event application with claims.
type Ledger struct {
	store Store
	tx    Transactor
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger panics when store or tx is nil.
func NewLedger(store Store, tx Transactor, opts ...Option) *Ledger {
	if store == nil {
		panic("idempotency: store cannot be nil")
	}
	if tx == nil {
		panic("idempotency: transactor cannot be nil")
	}
	l := &Ledger{store: store, tx: tx, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryClaim inserts the marker and reports whether this caller owns the event.
// Call it inside the transaction that applies the event.
func (l *Ledger) TryClaim(ctx context.Context, provider, eventID string) (bool, error) {
	if provider == "" || eventID == "" {
		return false, ErrInvalidKey
	}
	claimed, err := l.store.Claim(ctx, provider, eventID, l.now().UTC())
	if err != nil {
		return false, errors.Join(ErrClaimFailed, err)
	}
	return claimed, nil
}

// Apply claims the event and runs fn in one transaction. It returns false
// without calling fn when the event was already applied. An error from fn
// rolls back the claim as well.
func (l *Ledger) Apply(ctx context.Context, provider, eventID string, fn func(ctx context.Context) error) (bool, error) {
	var applied bool
	err := l.tx.WithTx(ctx, func(ctx context.Context) error {
		claimed, err := l.TryClaim(ctx, provider, eventID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		if err := fn(ctx); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// Prune deletes markers older than retention.
func (l *Ledger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := l.store.Prune(ctx, l.now().UTC().Add(-retention))
	if err != nil {
		return 0, errors.Join(ErrPruneFailed, err)
	}
	return n, nil
}
