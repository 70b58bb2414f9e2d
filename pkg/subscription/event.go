package subscription

import "time"

// BillingEvent is the provider-agnostic form of a webhook.
type BillingEvent struct {
	Provider               Provider
	EventID                string
	Type                   EventType
	ProviderEventType      string
	ProviderSubscriptionID string
	UserID                 string
	Email                  string

	// Plan is set by providers that name plans directly; otherwise PriceID
	// is resolved through the catalog.
	Plan           Plan
	PriceID        string
	ProviderStatus string
	Quantity       int64

	PeriodStart time.Time
	PeriodEnd   time.Time
	// EffectiveAt is when a cancellation takes effect. Zero means now.
	EffectiveAt time.Time
	// CancelAtPeriodEnd carries the provider's scheduled-cancel flag on
	// update events. Nil when the provider did not say.
	CancelAtPeriodEnd *bool
	// OneShot marks non-recurring purchases.
	OneShot    bool
	OccurredAt time.Time
	RawPayload []byte
}

// Handled reports whether the event maps to a canonical type.
func (e *BillingEvent) Handled() bool {
	return e.Type != "" && e.Type != EventUnhandled
}
