package billing

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/abuse"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
)

// Consumption is the admission decision plus the velocity it produced.
type Consumption struct {
	usage.Admission
	Velocity  abuse.Observation `json:"velocity"`
	Suspended bool              `json:"suspended,omitempty"`
}

// Consume admits one unit for the owner of subscription id.
func (s *Service) Consume(ctx context.Context, id uuid.UUID) (Consumption, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Consumption{}, err
	}
	adm, err := s.meter.TryConsume(ctx, id)
	if err != nil {
		return Consumption{}, err
	}
	return s.observe(ctx, sub.UserID, adm), nil
}

// ConsumeForUser admits one unit for userID from whatever the user holds.
func (s *Service) ConsumeForUser(ctx context.Context, userID string) (Consumption, error) {
	adm, err := s.meter.TryConsumeForUser(ctx, userID)
	if err != nil {
		return Consumption{}, err
	}
	return s.observe(ctx, userID, adm), nil
}

// Balance reports what the owner of subscription id can still consume.
func (s *Service) Balance(ctx context.Context, id uuid.UUID) (int64, error) {
	return s.meter.Remaining(ctx, id)
}

// observe feeds admitted units to the abuse guard. Guard failures never undo
// an admission.
func (s *Service) observe(ctx context.Context, userID string, adm usage.Admission) Consumption {
	res := Consumption{Admission: adm}
	if !adm.Allowed {
		return res
	}

	obs, err := s.guard.Observe(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "velocity not recorded", logger.UserID(userID), logger.Error(err))
		return res
	}
	res.Velocity = obs
	if obs.Verdict != abuse.VerdictSuspend {
		return res
	}

	suspended, err := s.suspend(ctx, userID, obs)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to suspend user", logger.UserID(userID), logger.Error(err))
		return res
	}
	res.Suspended = len(suspended) > 0
	return res
}

func (s *Service) suspend(ctx context.Context, userID string, obs abuse.Observation) ([]*subscription.Subscription, error) {
	var suspended []*subscription.Subscription
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		suspended, err = s.machine.Suspend(ctx, userID, map[string]any{
			"window_events": obs.Count,
			"verdict":       string(obs.Verdict),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(suspended) == 0 {
		return nil, nil
	}

	s.log.WarnContext(ctx, "user suspended for consumption velocity",
		logger.UserID(userID),
		logger.Int64("window_events", obs.Count),
		logger.Int64("subscriptions", int64(len(suspended))),
	)
	first := suspended[0]
	s.notify(ctx, notifications.Notification{
		Kind:           notifications.KindSubscriptionSuspended,
		UserID:         userID,
		SubscriptionID: first.ID.String(),
		Plan:           string(first.Plan),
		Data:           map[string]string{"window_events": strconv.FormatInt(obs.Count, 10)},
		CreatedAt:      s.now().UTC(),
	})
	return suspended, nil
}
