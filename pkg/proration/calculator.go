package proration

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Kind is the direction of a plan change.
type Kind string

const (
	KindUpgrade   Kind = "upgrade"
	KindDowngrade Kind = "downgrade"
)

// Quote is the priced effect of a plan change.
type Quote struct {
	From          subscription.Plan  `json:"from"`
	To            subscription.Plan  `json:"to"`
	Kind          Kind               `json:"kind"`
	Elapsed       float64            `json:"elapsed"`
	Charge        subscription.Money `json:"charge"`
	Credit        subscription.Money `json:"credit"`
	NewUsageLimit int64              `json:"new_usage_limit"`
	// Deferred changes apply at EffectiveAt instead of immediately.
	Deferred    bool      `json:"deferred"`
	EffectiveAt time.Time `json:"effective_at"`
	QuotedAt    time.Time `json:"quoted_at"`
	Summary     string    `json:"summary"`
}

// Calculator prices plan changes from the catalog.
type Calculator struct {
	catalog *subscription.Catalog
	now     func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCalculator(catalog *subscription.Catalog, opts ...Option) *Calculator {
	if catalog == nil {
		panic("proration: catalog cannot be nil")
	}
	c := &Calculator{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ElapsedFraction is the share of [start, end) that lies before now,
// clamped to [0, 1].
func ElapsedFraction(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return 1
	}
	return clamp(float64(now.Sub(start)) / float64(total))
}

// QuoteFor prices moving sub to plan at the current instant.
func (c *Calculator) QuoteFor(sub *subscription.Subscription, to subscription.Plan) (Quote, error) {
	now := c.now().UTC()
	return c.quote(sub.Plan, to, ElapsedFraction(sub.PeriodStart, sub.PeriodEnd, now), sub.PeriodEnd, now)
}

// Quote prices a change given the elapsed fraction of the current period.
// periodEnd is only used for deferred downgrades.
func (c *Calculator) Quote(from, to subscription.Plan, elapsed float64, periodEnd time.Time) (Quote, error) {
	return c.quote(from, to, elapsed, periodEnd, c.now().UTC())
}

func (c *Calculator) quote(from, to subscription.Plan, elapsed float64, periodEnd, now time.Time) (Quote, error) {
	if math.IsNaN(elapsed) {
		return Quote{}, ErrInvalidElapsed
	}
	if from == to {
		return Quote{}, ErrSamePlan
	}
	cur, err := c.catalog.Spec(from)
	if err != nil {
		return Quote{}, err
	}
	next, err := c.catalog.Spec(to)
	if err != nil {
		return Quote{}, err
	}
	if !cur.Recurring || !next.Recurring {
		return Quote{}, ErrNotRecurring
	}
	if cur.Price.Currency != next.Price.Currency {
		return Quote{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, cur.Price.Currency, next.Price.Currency)
	}

	elapsed = clamp(elapsed)
	unused := int64(math.Round((1 - elapsed) * float64(cur.Price.Amount)))
	currency := cur.Price.Currency

	q := Quote{
		From:          from,
		To:            to,
		Elapsed:       elapsed,
		Charge:        subscription.Money{Currency: currency},
		Credit:        subscription.Money{Currency: currency},
		NewUsageLimit: next.UsageLimit,
		EffectiveAt:   now,
		QuotedAt:      now,
	}

	switch {
	case next.Price.Amount > cur.Price.Amount:
		q.Kind = KindUpgrade
		q.Charge.Amount = max(next.Price.Amount-unused, 0)
		q.Summary = fmt.Sprintf("Upgrade from %s to %s takes effect now; %s is charged today.",
			from, to, q.Charge)
	case next.Price.Amount == 0:
		q.Kind = KindDowngrade
		q.Deferred = true
		q.EffectiveAt = periodEnd
		q.Summary = fmt.Sprintf("Downgrade from %s to %s takes effect on %s; nothing is charged.",
			from, to, periodEnd.Format(time.DateOnly))
	default:
		q.Kind = KindDowngrade
		q.Credit.Amount = unused
		q.Summary = fmt.Sprintf("Downgrade from %s to %s takes effect now; %s is credited toward future invoices.",
			from, to, q.Credit)
	}
	return q, nil
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
