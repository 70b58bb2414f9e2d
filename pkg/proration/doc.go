// Package proration prices a mid-period plan change.
//
// An upgrade charges the new plan's period price less the unused share of
// the old one, never below zero. A downgrade credits the unused share toward
// future invoices and never produces a refund. Downgrading to a plan without
// a price defers the change to the end of the paid period.
//
// Quotes depend on the instant they are computed, so they are derived on
// every call and never stored. Computing one has no side effects, which
// makes it safe to use for previews.
package proration
