package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// ClearSuspension lifts an abuse suspension from every subscription of the
// owner of id and forgets the velocity window.
func (s *Service) ClearSuspension(ctx context.Context, id uuid.UUID, operator string) ([]*subscription.Subscription, error) {
	var cleared []*subscription.Subscription
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		cleared, err = s.machine.ClearSuspension(ctx, id, operator)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(cleared) == 0 {
		return nil, nil
	}

	userID := cleared[0].UserID
	if err := s.guard.Clear(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "velocity window not cleared", logger.UserID(userID), logger.Error(err))
	}
	s.log.InfoContext(ctx, "suspension cleared",
		logger.UserID(userID),
		logger.SubscriptionID(id),
		logger.Int64("subscriptions", int64(len(cleared))),
	)
	return cleared, nil
}

// History returns audit rows newest first.
func (s *Service) History(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	return s.history.List(ctx, f)
}
