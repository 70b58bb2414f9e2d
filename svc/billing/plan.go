package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/async"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// PlanChange is the committed result of ChangePlan.
type PlanChange struct {
	Subscription *subscription.Subscription `json:"subscription"`
	Quote        proration.Quote            `json:"quote"`
	Summary      string                     `json:"summary"`
}

// PreviewPlanChange prices a change at the current instant without side
// effects.
func (s *Service) PreviewPlanChange(ctx context.Context, userID string, plan subscription.Plan) (proration.Quote, error) {
	sub, err := s.currentRecurring(ctx, userID)
	if err != nil {
		return proration.Quote{}, err
	}
	return s.prorator.QuoteFor(sub, plan)
}

// ChangePlan moves the user's recurring subscription to plan. The provider
// is updated first; local state follows in one transaction. Downgrades to a
// free plan end the paid subscription at its period boundary instead.
func (s *Service) ChangePlan(ctx context.Context, userID string, plan subscription.Plan) (*PlanChange, error) {
	if plan == subscription.PlanPayPerUse {
		return nil, fmt.Errorf("%w: %s is not a recurring plan", ErrInvalidPlan, plan)
	}
	sub, err := s.currentRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}
	quote, err := s.prorator.QuoteFor(sub, plan)
	if err != nil {
		return nil, err
	}
	changer, ok := s.changers[sub.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, sub.Provider)
	}

	var updated *subscription.Subscription
	note := notifications.Notification{
		Kind:      notifications.KindPlanChanged,
		UserID:    userID,
		Data:      map[string]string{"summary": quote.Summary},
		CreatedAt: s.now().UTC(),
	}

	if quote.Deferred {
		err = s.callProvider(ctx, sub.Provider, "cancel_at_period_end", func(ctx context.Context) error {
			return changer.CancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID)
		})
		if err != nil {
			return nil, err
		}
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			updated, err = s.machine.ScheduleCancellation(ctx, sub.ID)
			return err
		})
		note.Kind = notifications.KindCancellationScheduled
		note.Data["period_end"] = quote.EffectiveAt.Format(time.DateOnly)
	} else {
		priceID, ok := s.catalog.PriceForProvider(plan, changer)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrPriceNotConfigured, plan, sub.Provider)
		}
		err = s.callProvider(ctx, sub.Provider, "change_plan", func(ctx context.Context) error {
			return changer.ChangePlan(ctx, sub.ProviderSubscriptionID, priceID)
		})
		if err != nil {
			return nil, err
		}
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			updated, err = s.machine.ChangePlan(ctx, sub.ID, plan, priceID, map[string]any{
				"kind":   string(quote.Kind),
				"charge": quote.Charge.String(),
				"credit": quote.Credit.String(),
			})
			return err
		})
	}
	if err != nil {
		// The provider already moved; its next webhook converges local state.
		s.log.ErrorContext(ctx, "plan changed at provider but not locally",
			logger.UserID(userID),
			logger.SubscriptionID(sub.ID),
			logger.Provider(sub.Provider),
			logger.Error(err),
		)
		return nil, err
	}

	note.SubscriptionID = updated.ID.String()
	note.Plan = string(updated.Plan)
	s.notify(ctx, note)

	s.log.InfoContext(ctx, "plan changed",
		logger.UserID(userID),
		logger.SubscriptionID(updated.ID),
		logger.Status(string(quote.Kind)),
	)
	return &PlanChange{Subscription: updated, Quote: quote, Summary: quote.Summary}, nil
}

// CancelAtPeriodEnd stops the user's recurring subscription from renewing.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, err := s.currentRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.CancelAtPeriodEnd {
		return sub, nil
	}
	changer, ok := s.changers[sub.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, sub.Provider)
	}
	err = s.callProvider(ctx, sub.Provider, "cancel_at_period_end", func(ctx context.Context) error {
		return changer.CancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID)
	})
	if err != nil {
		return nil, err
	}

	var updated *subscription.Subscription
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.machine.ScheduleCancellation(ctx, sub.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notifications.Notification{
		Kind:           notifications.KindCancellationScheduled,
		UserID:         userID,
		SubscriptionID: updated.ID.String(),
		Plan:           string(updated.Plan),
		Data:           map[string]string{"period_end": updated.PeriodEnd.Format(time.DateOnly)},
		CreatedAt:      s.now().UTC(),
	})
	return updated, nil
}

func (s *Service) currentRecurring(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, err := s.store.FindActiveRecurring(ctx, userID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, err
	}
	if sub.Status == subscription.StatusSuspended {
		return nil, ErrSuspended
	}
	return sub, nil
}

// callProvider runs fn under the provider timeout.
func (s *Service) callProvider(ctx context.Context, provider subscription.Provider, op string, fn func(context.Context) error) error {
	start := s.now()
	_, err := async.Call(ctx, s.providerTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	s.metrics.ObserveProviderCall(provider.String(), op, err, s.now().Sub(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, async.ErrTimeout):
		return errors.Join(ErrProviderTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return errors.Join(ErrProviderFailed, err)
	}
}
