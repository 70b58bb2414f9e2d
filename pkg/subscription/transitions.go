package subscription

import (
	"context"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/statemachine"
)

// liveStatuses are the non-terminal states a provider event can move.
var liveStatuses = []Status{StatusActive, StatusPastDue, StatusPaused}

func transitionTable() *statemachine.Table {
	ts := []statemachine.Transition{
		on(StatusNone, StatusActive, EventActivated, nil, create),
		on(StatusNone, StatusActive, EventPaymentSucceeded, guards(oneShot), create),
		on(StatusPastDue, StatusActive, EventActivated, nil, reactivate),
		on(StatusPaused, StatusActive, EventActivated, nil, reactivate),
		on(StatusPastDue, StatusActive, EventPaymentSucceeded, guards(not(oneShot)), recoverPayment),
	}

	for _, s := range liveStatuses {
		ts = append(ts,
			on(s, StatusCancelled, EventRenewed, guards(cancelPending), finishCancellation),
			on(s, StatusActive, EventRenewed, guards(newerPeriod), renew),
			on(s, StatusCancelled, EventCancelled, guards(immediate), cancelNow),
			on(s, s, EventCancelled, nil, scheduleCancellation),
			on(s, StatusFailed, EventPaymentFailed, nil, failPayment),
		)
		for _, target := range []Status{StatusActive, StatusPastDue, StatusPaused, StatusCancelled, StatusFailed} {
			ts = append(ts, on(s, target, EventUpdated, guards(providerReports(target)), update))
		}
		// Updates without a recognisable status keep the current one.
		ts = append(ts, on(s, s, EventUpdated, nil, update))
	}

	return statemachine.MustNew(statemachine.WithTransitions(ts...))
}

type guardFunc func(c *change) bool

type actionFunc func(c *change, to Status) error

func on(from, to Status, event EventType, gs []statemachine.Guard, action actionFunc) statemachine.Transition {
	return statemachine.Transition{
		From:   from,
		To:     to,
		Event:  event,
		Guards: gs,
		Actions: []statemachine.Action{
			func(_ context.Context, _, target statemachine.State, _ statemachine.Event, data any) error {
				return action(data.(*change), target.(Status))
			},
		},
	}
}

func guards(fns ...guardFunc) []statemachine.Guard {
	out := make([]statemachine.Guard, 0, len(fns))
	for _, fn := range fns {
		out = append(out, func(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
			return fn(data.(*change))
		})
	}
	return out
}

func not(fn guardFunc) guardFunc {
	return func(c *change) bool { return !fn(c) }
}

func oneShot(c *change) bool {
	return c.event.OneShot || c.plan == PlanPayPerUse
}

func cancelPending(c *change) bool {
	return c.sub.CancelAtPeriodEnd
}

// anchorDrift bounds how far a locally computed month boundary can sit from
// the provider's: AddDate from the 28th lands up to three days short of a
// month-end anchor.
const anchorDrift = 4 * 24 * time.Hour

// newerPeriod accepts renewals that move the period forward, or that restate
// the current period on the provider's anchor after the meter rolled it over
// locally. Without a period in the event the stored one must have elapsed.
func newerPeriod(c *change) bool {
	ev, sub := c.event, c.sub
	if ev.PeriodEnd.IsZero() {
		return !c.now.Before(sub.PeriodEnd)
	}
	if ev.PeriodEnd.After(sub.PeriodEnd) {
		return true
	}
	return !ev.PeriodStart.IsZero() &&
		!ev.PeriodStart.Before(sub.PeriodStart) &&
		!ev.PeriodEnd.Equal(sub.PeriodEnd)
}

func immediate(c *change) bool {
	return c.event.EffectiveAt.IsZero() || !c.event.EffectiveAt.After(c.now)
}

func providerReports(target Status) guardFunc {
	return func(c *change) bool {
		s, ok := ParseProviderStatus(c.event.ProviderStatus)
		return ok && s == target
	}
}

func create(c *change, _ Status) error {
	if c.unresolved != nil {
		return c.unresolved
	}
	ev, sub := c.event, c.sub
	sub.Plan = c.plan
	sub.UsageCount = 0

	if c.spec.Recurring {
		start := ev.PeriodStart
		if start.IsZero() {
			start = c.now
		}
		end := ev.PeriodEnd
		if !end.After(start) {
			end = start.AddDate(0, c.spec.BillingIntervalMonths, 0)
		}
		sub.PeriodStart, sub.PeriodEnd, sub.LastResetAt = start, end, start
		sub.UsageLimit = c.spec.UsageLimit
		c.supersede = true
		c.action = "subscription.activated"
		c.notify(notifications.KindSubscriptionConfirmed, nil)
	} else {
		qty := max(ev.Quantity, 1)
		sub.PeriodStart, sub.LastResetAt = c.now, c.now
		sub.PeriodEnd = c.now.Add(c.spec.GrantTTL)
		sub.UsageLimit = c.spec.UsageLimit * qty
		c.action = "subscription.credits_granted"
		c.notify(notifications.KindCreditsGranted, map[string]string{"credits": formatCredits(sub.UsageLimit)})
	}

	c.create = true
	c.reset = true
	return nil
}

func reactivate(c *change, _ Status) error {
	if c.unresolved != nil {
		return c.unresolved
	}
	ev, sub := c.event, c.sub
	sub.Plan = c.plan
	if ev.PriceID != "" {
		sub.PriceID = ev.PriceID
	}
	sub.UsageLimit = c.spec.UsageLimit
	sub.CancelAtPeriodEnd = false
	sub.CancelledAt = nil
	if !ev.PeriodStart.IsZero() {
		sub.PeriodStart = ev.PeriodStart
	} else {
		sub.PeriodStart = c.now
	}
	if ev.PeriodEnd.After(sub.PeriodStart) {
		sub.PeriodEnd = ev.PeriodEnd
	} else {
		sub.PeriodEnd = sub.PeriodStart.AddDate(0, max(c.spec.BillingIntervalMonths, 1), 0)
	}
	sub.LastResetAt = sub.PeriodStart
	sub.UsageCount = 0

	c.reset = true
	c.supersede = c.spec.Recurring
	c.action = "subscription.reactivated"
	c.notify(notifications.KindSubscriptionConfirmed, nil)
	return nil
}

func recoverPayment(c *change, _ Status) error {
	c.action = "subscription.payment_recovered"
	return nil
}

func renew(c *change, _ Status) error {
	ev, sub := c.event, c.sub
	start := ev.PeriodStart
	if start.IsZero() {
		start = sub.PeriodEnd
	}
	end := ev.PeriodEnd
	if !end.After(start) {
		end = start.AddDate(0, max(c.spec.BillingIntervalMonths, 1), 0)
	}
	if ev.PriceID != "" && c.plan == sub.Plan {
		sub.PriceID = ev.PriceID
	}
	c.action = "subscription.renewed"

	// The meter already rolled this window over on its own clock; only the
	// provider's bounds are taken so the counter is not reset twice.
	if !sub.LastResetAt.Before(start.Add(-anchorDrift)) {
		sub.PeriodStart, sub.PeriodEnd = start, end
		c.period = true
		return nil
	}

	sub.PeriodStart, sub.PeriodEnd, sub.LastResetAt = start, end, start
	sub.UsageCount = 0
	c.reset = true
	return nil
}

func finishCancellation(c *change, _ Status) error {
	at := c.now
	c.sub.CancelledAt = &at
	c.action = "subscription.cancelled"
	c.notify(notifications.KindSubscriptionCancelled, nil)
	return nil
}

func cancelNow(c *change, _ Status) error {
	at := c.now
	c.sub.CancelledAt = &at
	c.sub.CancelAtPeriodEnd = false
	c.action = "subscription.cancelled"
	c.notify(notifications.KindSubscriptionCancelled, nil)
	return nil
}

func scheduleCancellation(c *change, _ Status) error {
	c.sub.CancelAtPeriodEnd = true
	c.action = "subscription.cancellation_scheduled"
	c.notify(notifications.KindCancellationScheduled, map[string]string{
		"period_end": c.sub.PeriodEnd.Format(time.DateOnly),
	})
	return nil
}

func failPayment(c *change, _ Status) error {
	c.action = "subscription.payment_failed"
	c.notify(notifications.KindPaymentFailed, nil)
	return nil
}

func update(c *change, to Status) error {
	if c.unresolved != nil {
		return c.unresolved
	}
	ev, sub := c.event, c.sub
	if c.plan != sub.Plan {
		sub.Plan = c.plan
		sub.UsageLimit = c.spec.UsageLimit
	}
	if ev.PriceID != "" {
		sub.PriceID = ev.PriceID
	}
	if ev.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *ev.CancelAtPeriodEnd
	}

	c.action = "subscription.updated"
	if to == StatusCancelled {
		at := c.now
		sub.CancelledAt = &at
		c.action = "subscription.cancelled"
		c.notify(notifications.KindSubscriptionCancelled, nil)
	}
	return nil
}
