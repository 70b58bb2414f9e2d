package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/pkg/audit"
)

// Subscription is one plan grant for one user.
// Recurring plans have at most one active row per user; pay-per-use grants
// are separate rows that coexist with it.
type Subscription struct {
	ID                     uuid.UUID    `json:"id"`
	UserID                 string       `json:"user_id"`
	Provider               Provider     `json:"provider"`
	ProviderSubscriptionID string       `json:"provider_subscription_id"`
	Plan                   Plan         `json:"plan"`
	PriceID                string       `json:"price_id,omitempty"`
	Status                 Status       `json:"status"`
	StatusSource           audit.Source `json:"status_source"`
	// SuspendedStatus is the status restored when a suspension is cleared.
	// Provider events received while suspended update it instead of Status.
	SuspendedStatus   Status     `json:"suspended_status,omitempty"`
	SuspendedAt       *time.Time `json:"suspended_at,omitempty"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"` // expiry for pay-per-use grants
	LastResetAt       time.Time  `json:"last_reset_at"`
	UsageCount        int64      `json:"usage_count"`
	UsageLimit        int64      `json:"usage_limit"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Remaining returns the unused quota, never negative.
func (s *Subscription) Remaining() int64 {
	return max(s.UsageLimit-s.UsageCount, 0)
}

// Overused reports a counter above its limit. Admission never produces this
// state, so seeing it means some path bypassed the meter.
func (s *Subscription) Overused() bool {
	return s.UsageCount > s.UsageLimit
}

// IsGrant reports whether the row is a one-shot pay-per-use grant.
func (s *Subscription) IsGrant() bool {
	return s.Plan == PlanPayPerUse
}

// Expired reports whether a grant is past its expiry.
func (s *Subscription) Expired(now time.Time) bool {
	return s.IsGrant() && !s.PeriodEnd.IsZero() && !now.Before(s.PeriodEnd)
}

// EffectiveStatus is the provider-side status, looking through a suspension.
func (s *Subscription) EffectiveStatus() Status {
	if s.Status == StatusSuspended && s.SuspendedStatus != "" {
		return s.SuspendedStatus
	}
	return s.Status
}

func (s *Subscription) clone() *Subscription {
	c := *s
	return &c
}
