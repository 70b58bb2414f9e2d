package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/store/memory"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

var errAbort = errors.New("abort")

func seed(t *testing.T, store *memory.Store) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		ID:                     uuid.New(),
		UserID:                 "user-1",
		Provider:               subscription.ProviderStripe,
		ProviderSubscriptionID: "sub_1",
		Plan:                   subscription.PlanMonthly,
		PriceID:                "price_a",
		Status:                 subscription.StatusActive,
		PeriodStart:            t0,
		PeriodEnd:              t0.AddDate(0, 1, 0),
		LastResetAt:            t0,
		UsageLimit:             100,
		UsageCount:             5,
		CreatedAt:              t0,
	}
	require.NoError(t, store.Create(context.Background(), sub))
	return sub
}

func TestUpdateRollbackKeepsIncrementsMadeOutsideTx(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      subscription.UpdateOptions
		wantCount int64
	}{
		{name: "plain update", opts: subscription.UpdateOptions{}, wantCount: 6},
		{name: "period only", opts: subscription.UpdateOptions{Period: true}, wantCount: 6},
		// The window write owns the counter, so its undo restores the read value.
		{name: "window reset", opts: subscription.UpdateOptions{ResetWindow: true}, wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := memory.New()
			sub := seed(t, store)

			err := store.WithTx(ctx, func(txCtx context.Context) error {
				next := *sub
				next.PriceID = "price_b"
				next.UsageLimit = 200
				next.PeriodEnd = t0.AddDate(0, 1, 3)
				require.NoError(t, store.Update(txCtx, &next, tt.opts))

				ok, err := store.IncrementUsage(ctx, sub.ID, sub.LastResetAt, t0.Add(time.Hour))
				require.NoError(t, err)
				require.True(t, ok)
				return errAbort
			})
			require.ErrorIs(t, err, errAbort)

			got, err := store.GetByID(ctx, sub.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, got.UsageCount)
			assert.Equal(t, "price_a", got.PriceID)
			assert.EqualValues(t, 100, got.UsageLimit)
			assert.Equal(t, sub.PeriodEnd, got.PeriodEnd)
			assert.Equal(t, sub.LastResetAt, got.LastResetAt)
		})
	}
}

func TestUpdateColumnGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	sub := seed(t, store)

	next := *sub
	next.UsageCount = 0
	next.PeriodStart = t0.AddDate(0, 1, 0)
	next.PeriodEnd = t0.AddDate(0, 2, 0)
	next.LastResetAt = t0.AddDate(0, 1, 0)

	require.NoError(t, store.Update(ctx, &next, subscription.UpdateOptions{}))
	got, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.UsageCount)
	assert.Equal(t, t0, got.PeriodStart)

	require.NoError(t, store.Update(ctx, &next, subscription.UpdateOptions{Period: true}))
	got, err = store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.UsageCount)
	assert.Equal(t, t0, got.LastResetAt)
	assert.Equal(t, next.PeriodEnd, got.PeriodEnd)

	require.NoError(t, store.Update(ctx, &next, subscription.UpdateOptions{ResetWindow: true}))
	got, err = store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.UsageCount)
	assert.Equal(t, next.LastResetAt, got.LastResetAt)

	missing := next
	missing.ID = uuid.New()
	assert.ErrorIs(t, store.Update(ctx, &missing, subscription.UpdateOptions{}), subscription.ErrSubscriptionNotFound)
}
