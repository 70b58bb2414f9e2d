package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/pg"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

const subscriptionColumns = `id, user_id, provider, provider_subscription_id, plan, price_id, status,
	status_source, suspended_status, suspended_at, period_start, period_end, last_reset_at,
	usage_count, usage_limit, cancel_at_period_end, cancelled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub                                           subscription.Subscription
		provider, plan, status, source, suspendedFrom string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &provider, &sub.ProviderSubscriptionID, &plan, &sub.PriceID, &status,
		&source, &suspendedFrom, &sub.SuspendedAt, &sub.PeriodStart, &sub.PeriodEnd, &sub.LastResetAt,
		&sub.UsageCount, &sub.UsageLimit, &sub.CancelAtPeriodEnd, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Provider = subscription.Provider(provider)
	sub.Plan = subscription.Plan(plan)
	sub.Status = subscription.Status(status)
	sub.StatusSource = audit.Source(source)
	sub.SuspendedStatus = subscription.Status(suspendedFrom)
	return &sub, nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.conn(ctx).QueryRow(ctx, query, args...))
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.getOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

// GetByProviderID locks the row until the surrounding transaction ends.
func (s *Store) GetByProviderID(ctx context.Context, provider subscription.Provider, providerSubscriptionID string) (*subscription.Subscription, error) {
	return s.getOne(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE provider = $1 AND provider_subscription_id = $2
		FOR UPDATE`,
		string(provider), providerSubscriptionID)
}

func (s *Store) FindActiveRecurring(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.getOne(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND plan <> $2
			AND (status = 'active' OR (status = 'suspended' AND suspended_status = 'active'))
		ORDER BY created_at, id
		LIMIT 1`,
		userID, string(subscription.PlanPayPerUse))
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	return s.list(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at, id`,
		userID)
}

func (s *Store) UserSuspended(ctx context.Context, userID string) (bool, error) {
	var suspended bool
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND status = 'suspended')`,
		userID).Scan(&suspended)
	if err != nil {
		return false, fmt.Errorf("query suspension: %w", err)
	}
	return suspended, nil
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		sub.ID, sub.UserID, string(sub.Provider), sub.ProviderSubscriptionID, string(sub.Plan), sub.PriceID,
		string(sub.Status), string(sub.StatusSource), string(sub.SuspendedStatus), sub.SuspendedAt,
		sub.PeriodStart, sub.PeriodEnd, sub.LastResetAt, sub.UsageCount, sub.UsageLimit,
		sub.CancelAtPeriodEnd, sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return subscription.ErrSubscriptionExists
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, sub *subscription.Subscription, opts subscription.UpdateOptions) error {
	query := `UPDATE subscriptions SET
		plan = $2, price_id = $3, status = $4, status_source = $5, suspended_status = $6,
		suspended_at = $7, usage_limit = $8, cancel_at_period_end = $9, cancelled_at = $10, updated_at = $11`
	args := []any{
		sub.ID, string(sub.Plan), sub.PriceID, string(sub.Status), string(sub.StatusSource),
		string(sub.SuspendedStatus), sub.SuspendedAt, sub.UsageLimit, sub.CancelAtPeriodEnd,
		sub.CancelledAt, sub.UpdatedAt,
	}
	switch {
	case opts.ResetWindow:
		query += `,
		period_start = $12, period_end = $13, last_reset_at = $14, usage_count = $15`
		args = append(args, sub.PeriodStart, sub.PeriodEnd, sub.LastResetAt, sub.UsageCount)
	case opts.Period:
		query += `,
		period_start = $12, period_end = $13`
		args = append(args, sub.PeriodStart, sub.PeriodEnd)
	}
	query += `
		WHERE id = $1`

	tag, err := s.conn(ctx).Exec(ctx, query, args...)
	if pg.IsDuplicateKeyError(err) {
		return subscription.ErrSubscriptionExists
	}
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

// ListGrants returns the user's active, unexpired pay-per-use grants.
func (s *Store) ListGrants(ctx context.Context, userID string, now time.Time) ([]*subscription.Subscription, error) {
	return s.list(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND plan = $2 AND status = 'active' AND period_end > $3
		ORDER BY created_at, id`,
		userID, string(subscription.PlanPayPerUse), now)
}

// IncrementUsage adds one unit when the row is active, below its limit,
// unexpired and still in the window the caller observed.
func (s *Store) IncrementUsage(ctx context.Context, id uuid.UUID, observedResetAt, now time.Time) (bool, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE subscriptions SET usage_count = usage_count + 1, updated_at = $3
		WHERE id = $1
			AND status = 'active'
			AND usage_count < usage_limit
			AND last_reset_at = $2
			AND (plan <> $4 OR period_end > $3)`,
		id, observedResetAt, now, string(subscription.PlanPayPerUse))
	if err != nil {
		return false, fmt.Errorf("increment usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Rollover moves the row into window w with consumed units already counted,
// provided nobody rolled it over since observedResetAt was read.
func (s *Store) Rollover(ctx context.Context, id uuid.UUID, observedResetAt time.Time, w subscription.Window, consumed int64) (bool, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE subscriptions SET
			last_reset_at = $3, period_start = $4, period_end = $5, usage_count = $6, updated_at = now()
		WHERE id = $1 AND status = 'active' AND last_reset_at = $2`,
		id, observedResetAt, w.ResetAt, w.PeriodStart, w.PeriodEnd, consumed)
	if err != nil {
		return false, fmt.Errorf("rollover usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
