package paddle

import (
	"context"
	"errors"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// SubscriptionUpdater is the part of the Paddle SDK used for plan changes.
type SubscriptionUpdater interface {
	UpdateSubscription(ctx context.Context, req *paddlesdk.UpdateSubscriptionRequest) (*paddlesdk.Subscription, error)
	CancelSubscription(ctx context.Context, req *paddlesdk.CancelSubscriptionRequest) (*paddlesdk.Subscription, error)
}

// PlanChanger swaps the single item of a Paddle subscription, prorating
// immediately.
type PlanChanger struct {
	client SubscriptionUpdater
}

func NewPlanChanger(client SubscriptionUpdater) *PlanChanger {
	if client == nil {
		panic("paddle: subscription updater cannot be nil")
	}
	return &PlanChanger{client: client}
}

func (c *PlanChanger) Provider() subscription.Provider { return subscription.ProviderPaddle }

// AcceptsPrice matches Paddle price ids (pri_...).
func (c *PlanChanger) AcceptsPrice(priceID string) bool {
	return strings.HasPrefix(priceID, "pri_")
}

func (c *PlanChanger) ChangePlan(ctx context.Context, providerSubscriptionID, priceID string) error {
	item := paddlesdk.NewUpdateSubscriptionItemsSubscriptionUpdateItemFromCatalog(&paddlesdk.SubscriptionUpdateItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	_, err := c.client.UpdateSubscription(ctx, &paddlesdk.UpdateSubscriptionRequest{
		SubscriptionID:       providerSubscriptionID,
		Items:                paddlesdk.NewPatchField([]paddlesdk.UpdateSubscriptionItems{*item}),
		ProrationBillingMode: paddlesdk.NewPatchField(paddlesdk.ProrationBillingModeProratedImmediately),
	})
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return nil
}

func (c *PlanChanger) CancelAtPeriodEnd(ctx context.Context, providerSubscriptionID string) error {
	_, err := c.client.CancelSubscription(ctx, &paddlesdk.CancelSubscriptionRequest{
		SubscriptionID: providerSubscriptionID,
		EffectiveFrom:  paddlesdk.PtrTo(paddlesdk.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return errors.Join(ErrUpdateFailed, err)
	}
	return nil
}
