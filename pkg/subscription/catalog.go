package subscription

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// PlanSpec is the catalog entry for one plan.
type PlanSpec struct {
	UsageLimit int64 `yaml:"usage_limit"`
	// ResetIntervalMonths is how often the usage counter rolls over.
	ResetIntervalMonths int `yaml:"reset_interval_months"`
	// BillingIntervalMonths is the length of one paid period.
	BillingIntervalMonths int   `yaml:"billing_interval_months"`
	Price                 Money `yaml:"price"`
	Recurring             bool  `yaml:"recurring"`
	// GrantTTL is the lifetime of a non-recurring grant.
	GrantTTL time.Duration `yaml:"grant_ttl"`
	// PriceIDs lists provider price identifiers that map to this plan.
	PriceIDs []string `yaml:"price_ids"`
}

// Catalog maps plans to their limits and prices.
type Catalog struct {
	plans   map[Plan]PlanSpec
	byPrice map[string]Plan
}

// DefaultCatalog returns the built-in plan set.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(map[Plan]PlanSpec{
		PlanFree: {
			UsageLimit:            5,
			ResetIntervalMonths:   1,
			BillingIntervalMonths: 1,
			Price:                 Money{Currency: "USD"},
			Recurring:             true,
		},
		PlanMonthly: {
			UsageLimit:            100,
			ResetIntervalMonths:   1,
			BillingIntervalMonths: 1,
			Price:                 Money{Amount: 900, Currency: "USD"},
			Recurring:             true,
		},
		PlanYearly: {
			UsageLimit:            100,
			ResetIntervalMonths:   1,
			BillingIntervalMonths: 12,
			Price:                 Money{Amount: 9000, Currency: "USD"},
			Recurring:             true,
		},
		PlanPayPerUse: {
			UsageLimit: 3,
			Price:      Money{Amount: 300, Currency: "USD"},
			GrantTTL:   365 * 24 * time.Hour,
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog validates the specs and indexes their price IDs.
func NewCatalog(plans map[Plan]PlanSpec) (*Catalog, error) {
	c := &Catalog{
		plans:   make(map[Plan]PlanSpec, len(plans)),
		byPrice: make(map[string]Plan),
	}
	for plan, spec := range plans {
		if plan == "" {
			return nil, fmt.Errorf("%w: empty plan name", ErrInvalidCatalog)
		}
		if spec.UsageLimit < 0 {
			return nil, fmt.Errorf("%w: plan %s has negative usage limit", ErrInvalidCatalog, plan)
		}
		if spec.Recurring && (spec.ResetIntervalMonths <= 0 || spec.BillingIntervalMonths <= 0) {
			return nil, fmt.Errorf("%w: recurring plan %s needs reset and billing intervals", ErrInvalidCatalog, plan)
		}
		if !spec.Recurring && spec.GrantTTL <= 0 {
			return nil, fmt.Errorf("%w: one-shot plan %s needs a grant ttl", ErrInvalidCatalog, plan)
		}
		for _, id := range spec.PriceIDs {
			if other, ok := c.byPrice[id]; ok && other != plan {
				return nil, fmt.Errorf("%w: price %s mapped to %s and %s", ErrInvalidCatalog, id, other, plan)
			}
			c.byPrice[id] = plan
		}
		c.plans[plan] = spec
	}
	return c, nil
}

type catalogFile struct {
	Plans map[Plan]PlanSpec `yaml:"plans"`
}

// LoadCatalog reads a YAML catalog file. Plans missing from the file keep
// their defaults; price IDs are taken from the file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog is LoadCatalog on an in-memory document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	merged := DefaultCatalog().plans
	for plan, spec := range f.Plans {
		merged[plan] = spec
	}
	return NewCatalog(merged)
}

// Spec returns the plan spec or ErrUnknownPlan.
func (c *Catalog) Spec(plan Plan) (PlanSpec, error) {
	spec, ok := c.plans[plan]
	if !ok {
		return PlanSpec{}, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	return spec, nil
}

// PlanForPrice resolves a provider price ID.
func (c *Catalog) PlanForPrice(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}

// PriceFor returns the first provider price ID configured for plan.
func (c *Catalog) PriceFor(plan Plan) (string, bool) {
	spec, ok := c.plans[plan]
	if !ok || len(spec.PriceIDs) == 0 {
		return "", false
	}
	return spec.PriceIDs[0], true
}

// PricesFor lists every provider price ID configured for plan.
func (c *Catalog) PricesFor(plan Plan) []string {
	return slices.Clone(c.plans[plan].PriceIDs)
}
