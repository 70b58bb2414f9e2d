package usage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Denial reasons.
const (
	ReasonLimitReached = "limit_reached"
	ReasonInactive     = "inactive"
	ReasonPeriodEnded  = "period_ended"
	ReasonOverage      = "overage"
	ReasonNoPlan       = "no_active_plan"
)

// Store holds the counters. IncrementUsage and Rollover must each be a single
// atomic conditional write returning false when the condition did not match.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error)
	FindActiveRecurring(ctx context.Context, userID string) (*subscription.Subscription, error)
	ListGrants(ctx context.Context, userID string, now time.Time) ([]*subscription.Subscription, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, observedResetAt, now time.Time) (bool, error)
	Rollover(ctx context.Context, id uuid.UUID, observedResetAt time.Time, w subscription.Window, consumed int64) (bool, error)
}

// Admission is the result of one TryConsume call.
type Admission struct {
	Allowed bool `json:"allowed"`
	// Remaining is the user's balance across all consumable rows after the decision.
	Remaining  int64     `json:"remaining"`
	ChargedID  uuid.UUID `json:"charged_id,omitzero"`
	RolledOver bool      `json:"rolled_over,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Meter implements admission.
type Meter struct {
	store       Store
	catalog     *subscription.Catalog
	log         *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	maxAttempts int
}

// Option configures a Meter.
type Option func(*Meter)

func WithLogger(l *slog.Logger) Option {
	return func(m *Meter) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Meter) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *Meter) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMaxAttempts bounds re-reads after lost races. Default 8.
func WithMaxAttempts(n int) Option {
	return func(m *Meter) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewMeter panics when store or catalog is nil.
func NewMeter(store Store, catalog *subscription.Catalog, opts ...Option) *Meter {
	if store == nil {
		panic("usage: store cannot be nil")
	}
	if catalog == nil {
		panic("usage: catalog cannot be nil")
	}
	m := &Meter{
		store:       store,
		catalog:     catalog,
		log:         logger.Nop(),
		now:         time.Now,
		maxAttempts: 8,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("usage"))
	return m
}

// TryConsume admits one unit for the owner of subscription id.
func (m *Meter) TryConsume(ctx context.Context, id uuid.UUID) (Admission, error) {
	for range m.maxAttempts {
		adm, retry, err := m.attempt(ctx, id)
		if err != nil {
			return Admission{}, err
		}
		if !retry {
			m.metrics.ObserveAdmission(adm.Allowed, adm.Reason)
			return adm, nil
		}
		m.metrics.ObserveContention()
		if err := ctx.Err(); err != nil {
			return Admission{}, err
		}
	}

	m.log.WarnContext(ctx, "usage admission gave up after concurrent updates",
		logger.SubscriptionID(id),
		slog.Int("attempts", m.maxAttempts),
	)
	return Admission{}, ErrContention
}

// TryConsumeForUser admits one unit for userID without the caller naming a
// subscription. Users with nothing consumable are denied with ReasonNoPlan.
func (m *Meter) TryConsumeForUser(ctx context.Context, userID string) (Admission, error) {
	id, err := m.anchor(ctx, userID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		m.metrics.ObserveAdmission(false, ReasonNoPlan)
		return Admission{Reason: ReasonNoPlan}, nil
	}
	if err != nil {
		return Admission{}, err
	}
	return m.TryConsume(ctx, id)
}

// anchor picks the row admission starts from: the recurring subscription,
// otherwise any live grant.
func (m *Meter) anchor(ctx context.Context, userID string) (uuid.UUID, error) {
	sub, err := m.store.FindActiveRecurring(ctx, userID)
	if err == nil {
		return sub.ID, nil
	}
	if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return uuid.Nil, fmt.Errorf("find recurring subscription: %w", err)
	}
	grants, err := m.store.ListGrants(ctx, userID, m.now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("list grants: %w", err)
	}
	if len(grants) == 0 {
		return uuid.Nil, subscription.ErrSubscriptionNotFound
	}
	return grants[0].ID, nil
}

// Remaining reports the balance without consuming.
func (m *Meter) Remaining(ctx context.Context, id uuid.UUID) (int64, error) {
	now := m.now().UTC()
	_, grants, recurring, err := m.load(ctx, id, now)
	if err != nil {
		return 0, err
	}
	return grantBalance(grants) + m.recurringBalance(recurring, now), nil
}

func (m *Meter) load(ctx context.Context, id uuid.UUID, now time.Time) (*subscription.Subscription, []*subscription.Subscription, *subscription.Subscription, error) {
	sub, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	grants, err := m.store.ListGrants(ctx, sub.UserID, now)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list grants: %w", err)
	}
	slices.SortFunc(grants, func(a, b *subscription.Subscription) int {
		return cmp.Or(
			cmp.Compare(a.Remaining(), b.Remaining()),
			a.PeriodEnd.Compare(b.PeriodEnd),
			slices.Compare(a.ID[:], b.ID[:]),
		)
	})

	recurring := sub
	if sub.IsGrant() {
		recurring, err = m.store.FindActiveRecurring(ctx, sub.UserID)
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			recurring = nil
		} else if err != nil {
			return nil, nil, nil, fmt.Errorf("find recurring subscription: %w", err)
		}
	}
	return sub, grants, recurring, nil
}

// attempt makes one admission decision. The bool reports a lost race on
// the recurring row.
func (m *Meter) attempt(ctx context.Context, id uuid.UUID) (Admission, bool, error) {
	now := m.now().UTC()
	_, grants, recurring, err := m.load(ctx, id, now)
	if err != nil {
		return Admission{}, false, err
	}

	for _, g := range grants {
		if g.Overused() {
			m.overage(ctx, g)
			continue
		}
		if g.Remaining() == 0 {
			continue
		}
		ok, err := m.store.IncrementUsage(ctx, g.ID, g.LastResetAt, now)
		if err != nil {
			return Admission{}, false, fmt.Errorf("increment grant usage: %w", err)
		}
		if !ok {
			// Exhausted, expired or suspended since the read.
			g.UsageCount = g.UsageLimit
			continue
		}
		g.UsageCount++
		return Admission{
			Allowed:   true,
			Remaining: grantBalance(grants) + m.recurringBalance(recurring, now),
			ChargedID: g.ID,
		}, false, nil
	}

	balance := grantBalance(grants)
	deny := func(reason string) (Admission, bool, error) {
		return Admission{Remaining: balance + m.recurringBalance(recurring, now), Reason: reason}, false, nil
	}

	if recurring == nil {
		return deny(ReasonNoPlan)
	}
	if recurring.Status != subscription.StatusActive {
		return deny(ReasonInactive)
	}
	spec, err := m.catalog.Spec(recurring.Plan)
	if err != nil {
		return Admission{}, false, err
	}

	// Overage is reported before a rollover would zero the evidence.
	if recurring.Overused() {
		m.overage(ctx, recurring)
	}

	if subscription.ResetDue(recurring, spec, now) {
		if recurring.CancelAtPeriodEnd && !now.Before(recurring.PeriodEnd) {
			return deny(ReasonPeriodEnded)
		}
		w := subscription.Rollover(recurring, spec, now)
		consumed := min(recurring.UsageLimit, 1)
		ok, err := m.store.Rollover(ctx, recurring.ID, recurring.LastResetAt, w, consumed)
		if err != nil {
			return Admission{}, false, fmt.Errorf("roll over usage: %w", err)
		}
		if !ok {
			return Admission{}, true, nil
		}
		m.log.DebugContext(ctx, "usage window rolled over",
			logger.SubscriptionID(recurring.ID),
			slog.Time("reset_at", w.ResetAt),
		)
		adm := Admission{
			Allowed:    consumed == 1,
			Remaining:  balance + recurring.UsageLimit - consumed,
			RolledOver: true,
		}
		if adm.Allowed {
			adm.ChargedID = recurring.ID
		} else {
			adm.Reason = ReasonLimitReached
		}
		return adm, false, nil
	}

	if recurring.Overused() {
		return deny(ReasonOverage)
	}
	if recurring.Remaining() == 0 {
		return deny(ReasonLimitReached)
	}

	ok, err := m.store.IncrementUsage(ctx, recurring.ID, recurring.LastResetAt, now)
	if err != nil {
		return Admission{}, false, fmt.Errorf("increment usage: %w", err)
	}
	if !ok {
		return Admission{}, true, nil
	}
	return Admission{
		Allowed:   true,
		Remaining: balance + recurring.Remaining() - 1,
		ChargedID: recurring.ID,
	}, false, nil
}

// recurringBalance is what the recurring row could still admit, counting a
// pending rollover as a full window.
func (m *Meter) recurringBalance(sub *subscription.Subscription, now time.Time) int64 {
	if sub == nil || sub.Status != subscription.StatusActive {
		return 0
	}
	spec, err := m.catalog.Spec(sub.Plan)
	if err != nil {
		return 0
	}
	if subscription.ResetDue(sub, spec, now) {
		if sub.CancelAtPeriodEnd && !now.Before(sub.PeriodEnd) {
			return 0
		}
		return sub.UsageLimit
	}
	return sub.Remaining()
}

func grantBalance(grants []*subscription.Subscription) int64 {
	var n int64
	for _, g := range grants {
		n += g.Remaining()
	}
	return n
}

func (m *Meter) overage(ctx context.Context, sub *subscription.Subscription) {
	m.metrics.ObserveOverage(string(sub.Plan))
	m.log.ErrorContext(ctx, "usage count exceeds limit",
		logger.SubscriptionID(sub.ID),
		logger.UserID(sub.UserID),
		logger.Int64("usage_count", sub.UsageCount),
		logger.Int64("usage_limit", sub.UsageLimit),
	)
}
