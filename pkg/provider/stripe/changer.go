package stripe

import (
	"context"
	"errors"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// SubscriptionAPI is the part of the stripe subscription client used for
// plan changes. *subscription.Client from stripe-go satisfies it.
type SubscriptionAPI interface {
	Get(id string, params *stripeapi.SubscriptionParams) (*stripeapi.Subscription, error)
	Update(id string, params *stripeapi.SubscriptionParams) (*stripeapi.Subscription, error)
}

// PlanChanger swaps the first item's price and invoices the proration
// immediately.
type PlanChanger struct {
	api SubscriptionAPI
}

func NewPlanChanger(api SubscriptionAPI) *PlanChanger {
	if api == nil {
		panic("stripe: subscription api cannot be nil")
	}
	return &PlanChanger{api: api}
}

func (c *PlanChanger) Provider() subscription.Provider { return subscription.ProviderStripe }

// AcceptsPrice matches Stripe price ids (price_...).
func (c *PlanChanger) AcceptsPrice(priceID string) bool {
	return strings.HasPrefix(priceID, "price_")
}

func (c *PlanChanger) ChangePlan(ctx context.Context, providerSubscriptionID, priceID string) error {
	getParams := &stripeapi.SubscriptionParams{}
	getParams.Context = ctx
	current, err := c.api.Get(providerSubscriptionID, getParams)
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return ErrNoItems
	}

	params := &stripeapi.SubscriptionParams{
		Items: []*stripeapi.SubscriptionItemsParams{{
			ID:    stripeapi.String(current.Items.Data[0].ID),
			Price: stripeapi.String(priceID),
		}},
		ProrationBehavior: stripeapi.String("always_invoice"),
	}
	params.Context = ctx
	if _, err := c.api.Update(providerSubscriptionID, params); err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return nil
}

func (c *PlanChanger) CancelAtPeriodEnd(ctx context.Context, providerSubscriptionID string) error {
	params := &stripeapi.SubscriptionParams{CancelAtPeriodEnd: stripeapi.Bool(true)}
	params.Context = ctx
	if _, err := c.api.Update(providerSubscriptionID, params); err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return nil
}
