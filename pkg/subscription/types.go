package subscription

import (
	"fmt"
	"strings"
)

// Plan is a catalog plan identifier.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanMonthly   Plan = "monthly"
	PlanYearly    Plan = "yearly"
	PlanPayPerUse Plan = "pay_per_use"
)

// Status is the lifecycle state of a subscription row.
type Status string

const (
	// StatusNone is the state of a row that does not exist yet.
	StatusNone      Status = "none"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
	// StatusSuspended is forced by the abuse guard and cleared only by an operator.
	StatusSuspended Status = "suspended"
)

func (s Status) Name() string { return string(s) }

// Terminal reports whether no provider event can leave the status.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFailed
}

// ParseProviderStatus maps a provider's status string onto Status.
// Both Paddle and Stripe vocabularies are accepted.
func ParseProviderStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "trialing":
		return StatusActive, true
	case "past_due", "unpaid":
		return StatusPastDue, true
	case "paused":
		return StatusPaused, true
	case "canceled", "cancelled":
		return StatusCancelled, true
	case "incomplete_expired":
		return StatusFailed, true
	default:
		return "", false
	}
}

// Provider names a payment provider.
type Provider string

const (
	ProviderPaddle  Provider = "paddle"
	ProviderStripe  Provider = "stripe"
	ProviderLicense Provider = "license"
)

func (p Provider) String() string { return string(p) }

// EventType is the canonical billing event type.
type EventType string

const (
	EventActivated        EventType = "subscription_activated"
	EventUpdated          EventType = "subscription_updated"
	EventCancelled        EventType = "subscription_cancelled"
	EventRenewed          EventType = "subscription_renewed"
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventPaymentFailed    EventType = "payment_failed"
	// EventUnhandled marks provider events that are acknowledged but ignored.
	EventUnhandled EventType = "unhandled"
)

func (e EventType) Name() string { return string(e) }

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// String formats two-decimal currencies, e.g. "9.00 USD".
func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, m.Currency)
}
