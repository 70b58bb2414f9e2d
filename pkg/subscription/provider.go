package subscription

import "context"

// PlanChanger moves a provider subscription to another price. The provider
// bills or credits the difference itself; local state follows through
// Machine.ChangePlan and later webhooks.
type PlanChanger interface {
	Provider() Provider
	// AcceptsPrice reports whether priceID belongs to this provider.
	AcceptsPrice(priceID string) bool
	ChangePlan(ctx context.Context, providerSubscriptionID, priceID string) error
	// CancelAtPeriodEnd asks the provider to stop renewing at the current
	// period boundary.
	CancelAtPeriodEnd(ctx context.Context, providerSubscriptionID string) error
}

// PriceForProvider returns the first price of plan accepted by pc.
func (c *Catalog) PriceForProvider(plan Plan, pc PlanChanger) (string, bool) {
	for _, id := range c.PricesFor(plan) {
		if pc.AcceptsPrice(id) {
			return id, true
		}
	}
	return "", false
}
