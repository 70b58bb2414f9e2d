package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return copySub(sub), nil
}

func (s *Store) GetByProviderID(_ context.Context, provider subscription.Provider, providerSubscriptionID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[markerKey{provider: string(provider), eventID: providerSubscriptionID}]
	if !ok {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return copySub(s.subs[id]), nil
}

func (s *Store) FindActiveRecurring(_ context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.sorted(userID) {
		if sub.IsGrant() {
			continue
		}
		if sub.Status == subscription.StatusActive ||
			(sub.Status == subscription.StatusSuspended && sub.SuspendedStatus == subscription.StatusActive) {
			return copySub(sub), nil
		}
	}
	return nil, subscription.ErrSubscriptionNotFound
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sorted(userID)
	out := make([]*subscription.Subscription, 0, len(rows))
	for _, sub := range rows {
		out = append(out, copySub(sub))
	}
	return out, nil
}

func (s *Store) UserSuspended(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.Status == subscription.StatusSuspended {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := markerKey{provider: string(sub.Provider), eventID: sub.ProviderSubscriptionID}
	if _, ok := s.byRef[ref]; ok {
		return subscription.ErrSubscriptionExists
	}
	if _, ok := s.subs[sub.ID]; ok {
		return subscription.ErrSubscriptionExists
	}

	s.subs[sub.ID] = copySub(sub)
	s.byRef[ref] = sub.ID
	id := sub.ID
	record(ctx, func() {
		delete(s.subs, id)
		delete(s.byRef, ref)
	})
	return nil
}

func (s *Store) Update(ctx context.Context, sub *subscription.Subscription, opts subscription.UpdateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.subs[sub.ID]
	if !ok {
		return subscription.ErrSubscriptionNotFound
	}
	prev := copySub(cur)
	record(ctx, func() {
		if row, ok := s.subs[prev.ID]; ok {
			writeColumns(row, prev, opts)
		}
	})
	writeColumns(cur, sub, opts)
	return nil
}

// writeColumns copies the columns Update owns from src into dst. Undo goes
// through it too, so a rollback never touches counter changes the meter made
// outside the transaction.
func writeColumns(dst, src *subscription.Subscription, opts subscription.UpdateOptions) {
	dst.Plan = src.Plan
	dst.PriceID = src.PriceID
	dst.Status = src.Status
	dst.StatusSource = src.StatusSource
	dst.SuspendedStatus = src.SuspendedStatus
	dst.SuspendedAt = src.SuspendedAt
	dst.UsageLimit = src.UsageLimit
	dst.CancelAtPeriodEnd = src.CancelAtPeriodEnd
	dst.CancelledAt = src.CancelledAt
	dst.UpdatedAt = src.UpdatedAt

	switch {
	case opts.ResetWindow:
		dst.PeriodStart, dst.PeriodEnd = src.PeriodStart, src.PeriodEnd
		dst.LastResetAt, dst.UsageCount = src.LastResetAt, src.UsageCount
	case opts.Period:
		dst.PeriodStart, dst.PeriodEnd = src.PeriodStart, src.PeriodEnd
	}
}

// ListGrants returns the user's active, unexpired pay-per-use grants.
func (s *Store) ListGrants(_ context.Context, userID string, now time.Time) ([]*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscription.Subscription
	for _, sub := range s.sorted(userID) {
		if sub.IsGrant() && sub.Status == subscription.StatusActive && !sub.Expired(now) {
			out = append(out, copySub(sub))
		}
	}
	return out, nil
}

// IncrementUsage adds one unit when the row is active, below its limit,
// unexpired and still in the window the caller observed.
func (s *Store) IncrementUsage(_ context.Context, id uuid.UUID, observedResetAt, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return false, subscription.ErrSubscriptionNotFound
	}
	if sub.Status != subscription.StatusActive ||
		sub.UsageCount >= sub.UsageLimit ||
		!sub.LastResetAt.Equal(observedResetAt) ||
		sub.Expired(now) {
		return false, nil
	}
	sub.UsageCount++
	sub.UpdatedAt = now
	return true, nil
}

// Rollover moves the row into window w with consumed units already counted,
// provided nobody rolled it over since observedResetAt was read.
func (s *Store) Rollover(_ context.Context, id uuid.UUID, observedResetAt time.Time, w subscription.Window, consumed int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return false, subscription.ErrSubscriptionNotFound
	}
	if sub.Status != subscription.StatusActive || !sub.LastResetAt.Equal(observedResetAt) {
		return false, nil
	}
	sub.LastResetAt = w.ResetAt
	sub.PeriodStart = w.PeriodStart
	sub.PeriodEnd = w.PeriodEnd
	sub.UsageCount = consumed
	return true, nil
}

// sorted returns the user's rows oldest first. Must be called with mu held.
func (s *Store) sorted(userID string) []*subscription.Subscription {
	var rows []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			rows = append(rows, sub)
		}
	}
	slices.SortFunc(rows, func(a, b *subscription.Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return rows
}
