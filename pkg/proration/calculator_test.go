package proration_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

var now = time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)

func calculator() *proration.Calculator {
	return proration.NewCalculator(subscription.DefaultCatalog(),
		proration.WithClock(func() time.Time { return now }))
}

func TestQuoteUpgrade(t *testing.T) {
	t.Parallel()

	q, err := calculator().Quote(subscription.PlanMonthly, subscription.PlanYearly, 0.5, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, proration.KindUpgrade, q.Kind)
	// 9000 - 0.5*900
	assert.EqualValues(t, 8550, q.Charge.Amount)
	assert.EqualValues(t, 0, q.Credit.Amount)
	assert.EqualValues(t, 100, q.NewUsageLimit)
	assert.False(t, q.Deferred)
	assert.Equal(t, now, q.EffectiveAt)
	assert.Contains(t, q.Summary, "85.50 USD")
}

func TestQuoteUpgradeFromFree(t *testing.T) {
	t.Parallel()

	q, err := calculator().Quote(subscription.PlanFree, subscription.PlanMonthly, 0.9, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 900, q.Charge.Amount)
}

func TestQuoteDowngradeCreditsNeverRefunds(t *testing.T) {
	t.Parallel()

	q, err := calculator().Quote(subscription.PlanYearly, subscription.PlanMonthly, 0.25, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, proration.KindDowngrade, q.Kind)
	assert.EqualValues(t, 6750, q.Credit.Amount)
	assert.EqualValues(t, 0, q.Charge.Amount)
	assert.Contains(t, q.Summary, "credited")
}

func TestQuoteDowngradeToFreeIsDeferred(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	q, err := calculator().Quote(subscription.PlanMonthly, subscription.PlanFree, 0.5, periodEnd)
	require.NoError(t, err)

	assert.True(t, q.Deferred)
	assert.Equal(t, periodEnd, q.EffectiveAt)
	assert.EqualValues(t, 0, q.Credit.Amount)
	assert.EqualValues(t, 5, q.NewUsageLimit)
	assert.Contains(t, q.Summary, "2025-02-01")
}

func TestQuoteChargeIsNeverNegative(t *testing.T) {
	t.Parallel()

	catalog, err := subscription.NewCatalog(map[subscription.Plan]subscription.PlanSpec{
		"basic": {UsageLimit: 10, ResetIntervalMonths: 1, BillingIntervalMonths: 12, Recurring: true,
			Price: subscription.Money{Amount: 10000, Currency: "USD"}},
		"plus": {UsageLimit: 20, ResetIntervalMonths: 1, BillingIntervalMonths: 1, Recurring: true,
			Price: subscription.Money{Amount: 12000, Currency: "USD"}},
	})
	require.NoError(t, err)
	calc := proration.NewCalculator(catalog)

	for _, elapsed := range []float64{-1, 0, 0.1, 0.5, 1, 2} {
		q, err := calc.Quote("basic", "plus", elapsed, time.Time{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q.Charge.Amount, int64(0), "elapsed %v", elapsed)
		assert.GreaterOrEqual(t, q.Credit.Amount, int64(0), "elapsed %v", elapsed)
	}

	q, err := calc.Quote("basic", "plus", 0, time.Time{})
	require.NoError(t, err)
	assert.EqualValues(t, 2000, q.Charge.Amount)
}

func TestQuoteErrors(t *testing.T) {
	t.Parallel()

	calc := calculator()

	_, err := calc.Quote(subscription.PlanMonthly, subscription.PlanMonthly, 0.5, time.Time{})
	assert.ErrorIs(t, err, proration.ErrSamePlan)

	_, err = calc.Quote(subscription.PlanMonthly, subscription.PlanPayPerUse, 0.5, time.Time{})
	assert.ErrorIs(t, err, proration.ErrNotRecurring)

	_, err = calc.Quote(subscription.PlanMonthly, "enterprise", 0.5, time.Time{})
	assert.ErrorIs(t, err, subscription.ErrUnknownPlan)

	_, err = calc.Quote(subscription.PlanMonthly, subscription.PlanYearly, math.NaN(), time.Time{})
	assert.ErrorIs(t, err, proration.ErrInvalidElapsed)

	eur, err := subscription.NewCatalog(map[subscription.Plan]subscription.PlanSpec{
		"a": {UsageLimit: 1, ResetIntervalMonths: 1, BillingIntervalMonths: 1, Recurring: true, Price: subscription.Money{Amount: 100, Currency: "USD"}},
		"b": {UsageLimit: 1, ResetIntervalMonths: 1, BillingIntervalMonths: 1, Recurring: true, Price: subscription.Money{Amount: 200, Currency: "EUR"}},
	})
	require.NoError(t, err)
	_, err = proration.NewCalculator(eur).Quote("a", "b", 0.5, time.Time{})
	assert.ErrorIs(t, err, proration.ErrCurrencyMismatch)
}

func TestQuoteForUsesCurrentInstant(t *testing.T) {
	t.Parallel()

	sub := &subscription.Subscription{
		Plan:        subscription.PlanMonthly,
		PeriodStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	clock := now
	calc := proration.NewCalculator(subscription.DefaultCatalog(),
		proration.WithClock(func() time.Time { return clock }))

	first, err := calc.QuoteFor(sub, subscription.PlanYearly)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, first.Elapsed, 1e-9)

	clock = now.AddDate(0, 0, 10)
	second, err := calc.QuoteFor(sub, subscription.PlanYearly)
	require.NoError(t, err)
	assert.Greater(t, second.Charge.Amount, first.Charge.Amount)
}

func TestElapsedFraction(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	assert.InDelta(t, 0, proration.ElapsedFraction(start, end, start.Add(-time.Hour)), 0)
	assert.InDelta(t, 0.3, proration.ElapsedFraction(start, end, start.AddDate(0, 0, 3)), 1e-9)
	assert.InDelta(t, 1, proration.ElapsedFraction(start, end, end.AddDate(0, 0, 1)), 0)
	assert.InDelta(t, 1, proration.ElapsedFraction(start, start, start), 0)
}
