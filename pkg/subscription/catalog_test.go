package subscription_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := subscription.DefaultCatalog()

	tests := []struct {
		plan      subscription.Plan
		limit     int64
		recurring bool
		price     int64
	}{
		{subscription.PlanFree, 5, true, 0},
		{subscription.PlanMonthly, 100, true, 900},
		{subscription.PlanYearly, 100, true, 9000},
		{subscription.PlanPayPerUse, 3, false, 300},
	}
	for _, tt := range tests {
		spec, err := c.Spec(tt.plan)
		require.NoError(t, err, tt.plan)
		assert.Equal(t, tt.limit, spec.UsageLimit, tt.plan)
		assert.Equal(t, tt.recurring, spec.Recurring, tt.plan)
		assert.Equal(t, tt.price, spec.Price.Amount, tt.plan)
	}

	yearly, _ := c.Spec(subscription.PlanYearly)
	assert.Equal(t, 1, yearly.ResetIntervalMonths)
	assert.Equal(t, 12, yearly.BillingIntervalMonths)

	_, err := c.Spec("enterprise")
	assert.ErrorIs(t, err, subscription.ErrUnknownPlan)
}

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	raw := []byte(`
plans:
  monthly:
    usage_limit: 250
    reset_interval_months: 1
    billing_interval_months: 1
    recurring: true
    price:
      amount: 1500
      currency: USD
    price_ids: [pri_monthly_a, pri_monthly_b]
`)
	c, err := subscription.ParseCatalog(raw)
	require.NoError(t, err)

	spec, err := c.Spec(subscription.PlanMonthly)
	require.NoError(t, err)
	assert.EqualValues(t, 250, spec.UsageLimit)

	plan, ok := c.PlanForPrice("pri_monthly_b")
	require.True(t, ok)
	assert.Equal(t, subscription.PlanMonthly, plan)

	price, ok := c.PriceFor(subscription.PlanMonthly)
	require.True(t, ok)
	assert.Equal(t, "pri_monthly_a", price)

	// Plans absent from the file keep their defaults.
	free, err := c.Spec(subscription.PlanFree)
	require.NoError(t, err)
	assert.EqualValues(t, 5, free.UsageLimit)
}

func TestParseCatalogRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"recurring without interval": "plans:\n  monthly:\n    usage_limit: 1\n    recurring: true\n",
		"grant without ttl":          "plans:\n  pay_per_use:\n    usage_limit: 1\n",
		"negative limit":             "plans:\n  free:\n    usage_limit: -1\n    recurring: true\n    reset_interval_months: 1\n    billing_interval_months: 1\n",
		"duplicate price": `plans:
  monthly: {usage_limit: 1, recurring: true, reset_interval_months: 1, billing_interval_months: 1, price_ids: [p1]}
  yearly: {usage_limit: 1, recurring: true, reset_interval_months: 1, billing_interval_months: 12, price_ids: [p1]}
`,
		"not yaml": "plans: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := subscription.ParseCatalog([]byte(raw))
			assert.ErrorIs(t, err, subscription.ErrInvalidCatalog)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plans:\n  pay_per_use:\n    usage_limit: 10\n    grant_ttl: 720h\n"), 0o600))

	c, err := subscription.LoadCatalog(path)
	require.NoError(t, err)
	spec, err := c.Spec(subscription.PlanPayPerUse)
	require.NoError(t, err)
	assert.EqualValues(t, 10, spec.UsageLimit)

	_, err = subscription.LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, subscription.ErrInvalidCatalog)
}

type prefixChanger string

func (p prefixChanger) Provider() subscription.Provider { return subscription.ProviderStripe }

func (p prefixChanger) AcceptsPrice(id string) bool { return strings.HasPrefix(id, string(p)) }

func (p prefixChanger) ChangePlan(context.Context, string, string) error { return nil }

func (p prefixChanger) CancelAtPeriodEnd(context.Context, string) error { return nil }

func TestPriceForProvider(t *testing.T) {
	t.Parallel()

	c, err := subscription.ParseCatalog([]byte(`plans:
  monthly:
    usage_limit: 100
    reset_interval_months: 1
    billing_interval_months: 1
    recurring: true
    price_ids: [pri_monthly, price_monthly]
`))
	require.NoError(t, err)

	id, ok := c.PriceForProvider(subscription.PlanMonthly, prefixChanger("price_"))
	require.True(t, ok)
	assert.Equal(t, "price_monthly", id)

	_, ok = c.PriceForProvider(subscription.PlanYearly, prefixChanger("price_"))
	assert.False(t, ok)
	assert.Equal(t, []string{"pri_monthly", "price_monthly"}, c.PricesFor(subscription.PlanMonthly))
}
