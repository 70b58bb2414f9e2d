package subscription

import "time"

// Window is a usage window after rollover.
type Window struct {
	ResetAt     time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// NextReset returns the instant the usage counter is due to roll over:
// the earlier of the billing period end and one reset interval past the
// last reset. Plans that reset once per period follow the period end alone
// so the counter stays on the provider's anchor. Grants never roll over and
// return the zero time.
func NextReset(sub *Subscription, spec PlanSpec) time.Time {
	if !spec.Recurring || spec.ResetIntervalMonths <= 0 {
		return time.Time{}
	}
	if !sub.PeriodEnd.IsZero() && spec.ResetIntervalMonths >= spec.BillingIntervalMonths {
		return sub.PeriodEnd
	}
	next := sub.LastResetAt.AddDate(0, spec.ResetIntervalMonths, 0)
	if !sub.PeriodEnd.IsZero() && sub.PeriodEnd.Before(next) {
		next = sub.PeriodEnd
	}
	return next
}

// ResetDue reports whether the counter must roll over before admitting at now.
func ResetDue(sub *Subscription, spec PlanSpec, now time.Time) bool {
	next := NextReset(sub, spec)
	return !next.IsZero() && !now.Before(next)
}

// Rollover computes the window that contains now. Reset instants and the
// billing period both advance by whole intervals, so a subscription that
// was idle for several periods lands in the current one in a single step.
func Rollover(sub *Subscription, spec PlanSpec, now time.Time) Window {
	w := Window{PeriodStart: sub.PeriodStart, PeriodEnd: sub.PeriodEnd}

	if !w.PeriodEnd.IsZero() && spec.BillingIntervalMonths > 0 {
		for !now.Before(w.PeriodEnd) {
			w.PeriodStart = w.PeriodEnd
			w.PeriodEnd = w.PeriodEnd.AddDate(0, spec.BillingIntervalMonths, 0)
		}
	}

	reset := NextReset(sub, spec)
	if reset.IsZero() {
		return w
	}
	for {
		next := reset.AddDate(0, spec.ResetIntervalMonths, 0)
		if now.Before(next) {
			break
		}
		reset = next
	}
	// A new billing period always restarts the reset cadence.
	if reset.Before(w.PeriodStart) && !now.Before(w.PeriodStart) {
		reset = w.PeriodStart
	}
	w.ResetAt = reset
	return w
}
