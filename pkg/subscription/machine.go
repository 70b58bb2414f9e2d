package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/statemachine"
)

// Result classifies what Apply did with an event.
type Result string

const (
	ResultApplied   Result = "applied"
	ResultSkipped   Result = "skipped"
	ResultUnhandled Result = "unhandled"
)

// Outcome describes an applied or skipped event. Notifications must be
// dispatched by the caller after the surrounding transaction commits.
type Outcome struct {
	Result        Result
	Action        string
	Reason        string
	From          Status
	To            Status
	Subscription  *Subscription
	Notifications []notifications.Notification
}

// Machine applies canonical billing events to stored subscriptions.
type Machine struct {
	store   Store
	catalog *Catalog
	audit   *audit.Logger
	log     *slog.Logger
	now     func() time.Time
	table   *statemachine.Table
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine panics when a dependency is nil.
func NewMachine(store Store, catalog *Catalog, auditLog *audit.Logger, opts ...MachineOption) *Machine {
	if store == nil {
		panic("subscription: store cannot be nil")
	}
	if catalog == nil {
		panic("subscription: catalog cannot be nil")
	}
	if auditLog == nil {
		panic("subscription: audit logger cannot be nil")
	}
	m := &Machine{
		store:   store,
		catalog: catalog,
		audit:   auditLog,
		log:     logger.Nop(),
		now:     time.Now,
		table:   transitionTable(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("subscription"))
	return m
}

// change is the data threaded through guards and actions.
type change struct {
	event      *BillingEvent
	sub        *Subscription
	plan       Plan
	spec       PlanSpec
	now        time.Time
	unresolved error

	create    bool
	reset     bool
	period    bool
	supersede bool
	action    string
	notes     []notifications.Notification
}

func (c *change) notify(kind notifications.Kind, data map[string]string) {
	c.notes = append(c.notes, notifications.Notification{Kind: kind, Data: data})
}

// Apply reconciles ev into the store. It must run inside a transaction: the
// row is locked on read and every write, including the audit row, commits or
// rolls back together with the caller's idempotency claim.
//
// Events that no transition accepts are audited as skipped and return a nil
// error so the claim still commits. Events that cannot be linked to a user or
// a known plan return an error wrapping ErrUnresolvable.
func (m *Machine) Apply(ctx context.Context, ev *BillingEvent) (*Outcome, error) {
	if ev == nil || !ev.Handled() {
		return &Outcome{Result: ResultUnhandled}, nil
	}
	if ev.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%w: event %s has no subscription reference", ErrUnresolvable, ev.EventID)
	}
	now := m.now().UTC()

	existing, err := m.store.GetByProviderID(ctx, ev.Provider, ev.ProviderSubscriptionID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		existing = nil
	case err != nil:
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	c := m.prepare(ev, existing, now)
	from := StatusNone
	if existing != nil {
		from = existing.EffectiveStatus()
	}

	next, err := m.table.Fire(ctx, from, ev.Type, c)
	switch {
	case statemachine.Unhandled(err):
		return m.skip(ctx, ev, existing, from)
	case err != nil:
		return nil, err
	}
	to := next.(Status)

	if err := m.persist(ctx, c, existing, to); err != nil {
		return nil, err
	}

	sub := c.sub
	opts := []audit.EventOption{
		audit.WithSubscription(sub.ID.String(), sub.UserID),
		audit.WithTransition(string(from), string(to)),
		audit.WithProviderEvent(ev.Provider.String(), ev.EventID),
		audit.WithMetadata("event_type", string(ev.Type)),
		audit.WithMetadata("plan", string(sub.Plan)),
	}
	if sub.Status == StatusSuspended {
		opts = append(opts, audit.WithMetadata("suspended", true))
	}
	if err := m.audit.Log(ctx, c.action, audit.SourceProvider, opts...); err != nil {
		return nil, err
	}

	for i := range c.notes {
		n := &c.notes[i]
		n.UserID = sub.UserID
		n.Email = ev.Email
		n.SubscriptionID = sub.ID.String()
		n.Plan = string(sub.Plan)
		n.CreatedAt = now
	}

	m.log.InfoContext(ctx, "billing event applied",
		logger.Provider(ev.Provider),
		logger.EventID(ev.EventID),
		logger.EventType(string(ev.Type)),
		logger.SubscriptionID(sub.ID),
		logger.Status(string(to)),
	)

	return &Outcome{
		Result:        ResultApplied,
		Action:        c.action,
		From:          from,
		To:            to,
		Subscription:  sub,
		Notifications: c.notes,
	}, nil
}

func (m *Machine) prepare(ev *BillingEvent, existing *Subscription, now time.Time) *change {
	c := &change{event: ev, now: now}

	if existing != nil {
		c.sub = existing.clone()
		c.plan = existing.Plan
	} else {
		c.sub = &Subscription{
			ID:                     uuid.New(),
			UserID:                 ev.UserID,
			Provider:               ev.Provider,
			ProviderSubscriptionID: ev.ProviderSubscriptionID,
			PriceID:                ev.PriceID,
			CreatedAt:              now,
		}
		if ev.UserID == "" {
			c.unresolved = fmt.Errorf("%w: event %s carries no user id", ErrUnresolvable, ev.EventID)
		}
	}

	switch {
	case ev.Plan != "":
		c.plan = ev.Plan
	case ev.PriceID != "":
		if p, ok := m.catalog.PlanForPrice(ev.PriceID); ok {
			c.plan = p
		} else if existing == nil || ev.Type == EventUpdated {
			c.unresolved = errors.Join(c.unresolved,
				fmt.Errorf("%w: price %s is not in the catalog", ErrUnresolvable, ev.PriceID))
		}
	case ev.OneShot && existing == nil:
		c.plan = PlanPayPerUse
	}

	if c.plan == "" {
		if existing == nil {
			c.unresolved = errors.Join(c.unresolved,
				fmt.Errorf("%w: event %s names no plan", ErrUnresolvable, ev.EventID))
		}
		return c
	}
	spec, err := m.catalog.Spec(c.plan)
	if err != nil {
		c.unresolved = errors.Join(c.unresolved, fmt.Errorf("%w: %w", ErrUnresolvable, err))
		return c
	}
	c.spec = spec
	return c
}

func (m *Machine) persist(ctx context.Context, c *change, existing *Subscription, to Status) error {
	sub := c.sub
	sub.UpdatedAt = c.now

	if c.supersede {
		if err := m.supersede(ctx, sub, c); err != nil {
			return err
		}
	}

	if c.create {
		sub.Status = to
		sub.StatusSource = audit.SourceProvider
		suspended, err := m.store.UserSuspended(ctx, sub.UserID)
		if err != nil {
			return fmt.Errorf("check suspension: %w", err)
		}
		if suspended {
			at := c.now
			sub.SuspendedStatus = to
			sub.Status = StatusSuspended
			sub.StatusSource = audit.SourceAbuseGuard
			sub.SuspendedAt = &at
		}
		if err := m.store.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return nil
	}

	if existing.Status == StatusSuspended {
		sub.SuspendedStatus = to
	} else {
		sub.Status = to
		sub.StatusSource = audit.SourceProvider
	}
	if err := m.store.Update(ctx, sub, UpdateOptions{ResetWindow: c.reset, Period: c.period}); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// supersede cancels the user's other active recurring row so that at most
// one recurring plan stays active.
func (m *Machine) supersede(ctx context.Context, sub *Subscription, c *change) error {
	other, err := m.store.FindActiveRecurring(ctx, sub.UserID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find active subscription: %w", err)
	}
	if other.ID == sub.ID {
		return nil
	}
	// Lock the row before changing it.
	other, err = m.store.GetByProviderID(ctx, other.Provider, other.ProviderSubscriptionID)
	if err != nil {
		return fmt.Errorf("lock superseded subscription: %w", err)
	}

	from := other.EffectiveStatus()
	at := c.now
	other.CancelledAt = &at
	other.CancelAtPeriodEnd = false
	other.UpdatedAt = c.now
	if other.Status == StatusSuspended {
		other.SuspendedStatus = StatusCancelled
	} else {
		other.Status = StatusCancelled
		other.StatusSource = audit.SourceProvider
	}
	if err := m.store.Update(ctx, other, UpdateOptions{}); err != nil {
		return fmt.Errorf("cancel superseded subscription: %w", err)
	}
	return m.audit.Log(ctx, "subscription.superseded", audit.SourceProvider,
		audit.WithSubscription(other.ID.String(), other.UserID),
		audit.WithTransition(string(from), string(StatusCancelled)),
		audit.WithProviderEvent(c.event.Provider.String(), c.event.EventID),
		audit.WithMetadata("superseded_by", sub.ID.String()),
	)
}

func (m *Machine) skip(ctx context.Context, ev *BillingEvent, existing *Subscription, from Status) (*Outcome, error) {
	reason := fmt.Sprintf("no transition from %s on %s", from, ev.Type)
	opts := []audit.EventOption{
		audit.WithProviderEvent(ev.Provider.String(), ev.EventID),
		audit.WithTransition(string(from), string(from)),
		audit.WithResult(audit.ResultSkipped),
		audit.WithMetadata("event_type", string(ev.Type)),
		audit.WithMetadata("reason", reason),
	}
	if existing != nil {
		opts = append(opts, audit.WithSubscription(existing.ID.String(), existing.UserID))
	} else {
		opts = append(opts, audit.WithSubscription("", ev.UserID))
	}
	if err := m.audit.Log(ctx, "billing_event.skipped", audit.SourceProvider, opts...); err != nil {
		return nil, err
	}

	m.log.DebugContext(ctx, "billing event skipped",
		logger.Provider(ev.Provider),
		logger.EventID(ev.EventID),
		slog.String("reason", reason),
	)
	return &Outcome{Result: ResultSkipped, Reason: reason, From: from, To: from, Subscription: existing}, nil
}

// Suspend forces every live subscription of the user into the suspended
// state. Rows already suspended or terminal are left alone.
func (m *Machine) Suspend(ctx context.Context, userID string, meta map[string]any) ([]*Subscription, error) {
	subs, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	now := m.now().UTC()

	var suspended []*Subscription
	for _, s := range subs {
		if s.Status == StatusSuspended || s.Status.Terminal() {
			continue
		}
		sub, err := m.store.GetByProviderID(ctx, s.Provider, s.ProviderSubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("lock subscription: %w", err)
		}
		if sub.Status == StatusSuspended || sub.Status.Terminal() {
			continue
		}

		from := sub.Status
		at := now
		sub.SuspendedStatus = from
		sub.Status = StatusSuspended
		sub.StatusSource = audit.SourceAbuseGuard
		sub.SuspendedAt = &at
		sub.UpdatedAt = now
		if err := m.store.Update(ctx, sub, UpdateOptions{}); err != nil {
			return nil, fmt.Errorf("suspend subscription: %w", err)
		}

		opts := []audit.EventOption{
			audit.WithSubscription(sub.ID.String(), sub.UserID),
			audit.WithTransition(string(from), string(StatusSuspended)),
		}
		for k, v := range meta {
			opts = append(opts, audit.WithMetadata(k, v))
		}
		if err := m.audit.Log(ctx, "abuse.suspended", audit.SourceAbuseGuard, opts...); err != nil {
			return nil, err
		}
		suspended = append(suspended, sub)
	}
	return suspended, nil
}

// ClearSuspension restores every suspended row of the subscription's owner to
// the status the provider last reported.
func (m *Machine) ClearSuspension(ctx context.Context, id uuid.UUID, operator string) ([]*Subscription, error) {
	target, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Status != StatusSuspended {
		return nil, ErrNotSuspended
	}

	subs, err := m.store.ListByUser(ctx, target.UserID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	now := m.now().UTC()

	var cleared []*Subscription
	for _, s := range subs {
		if s.Status != StatusSuspended {
			continue
		}
		sub, err := m.store.GetByProviderID(ctx, s.Provider, s.ProviderSubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("lock subscription: %w", err)
		}
		if sub.Status != StatusSuspended {
			continue
		}

		restored := sub.SuspendedStatus
		if restored == "" {
			restored = StatusActive
		}
		sub.Status = restored
		sub.StatusSource = audit.SourceOperator
		sub.SuspendedStatus = ""
		sub.SuspendedAt = nil
		sub.UpdatedAt = now
		if err := m.store.Update(ctx, sub, UpdateOptions{}); err != nil {
			return nil, fmt.Errorf("clear suspension: %w", err)
		}
		if err := m.audit.Log(ctx, "abuse.suspension_cleared", audit.SourceOperator,
			audit.WithSubscription(sub.ID.String(), sub.UserID),
			audit.WithTransition(string(StatusSuspended), string(restored)),
			audit.WithMetadata("operator", operator),
		); err != nil {
			return nil, err
		}
		cleared = append(cleared, sub)
	}
	return cleared, nil
}

// ChangePlan moves a recurring subscription to another plan in place. The
// counter is kept; the limit is set to the new plan's limit.
func (m *Machine) ChangePlan(ctx context.Context, id uuid.UUID, plan Plan, priceID string, meta map[string]any) (*Subscription, error) {
	spec, err := m.catalog.Spec(plan)
	if err != nil {
		return nil, err
	}
	cur, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := m.store.GetByProviderID(ctx, cur.Provider, cur.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}

	fromPlan := sub.Plan
	sub.Plan = plan
	sub.PriceID = priceID
	sub.UsageLimit = spec.UsageLimit
	sub.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, sub, UpdateOptions{}); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	opts := []audit.EventOption{
		audit.WithSubscription(sub.ID.String(), sub.UserID),
		audit.WithTransition(string(sub.Status), string(sub.Status)),
		audit.WithMetadata("from_plan", string(fromPlan)),
		audit.WithMetadata("to_plan", string(plan)),
	}
	for k, v := range meta {
		opts = append(opts, audit.WithMetadata(k, v))
	}
	if err := m.audit.Log(ctx, "subscription.plan_changed", audit.SourceUser, opts...); err != nil {
		return nil, err
	}
	return sub, nil
}

// ScheduleCancellation marks a subscription to end at its period boundary on
// the user's request.
func (m *Machine) ScheduleCancellation(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	cur, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := m.store.GetByProviderID(ctx, cur.Provider, cur.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}
	sub.CancelAtPeriodEnd = true
	sub.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, sub, UpdateOptions{}); err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if err := m.audit.Log(ctx, "subscription.cancellation_scheduled", audit.SourceUser,
		audit.WithSubscription(sub.ID.String(), sub.UserID),
		audit.WithTransition(string(sub.Status), string(sub.Status)),
		audit.WithMetadata("period_end", sub.PeriodEnd.Format(time.RFC3339)),
	); err != nil {
		return nil, err
	}
	return sub, nil
}

func formatCredits(n int64) string { return strconv.FormatInt(n, 10) }
