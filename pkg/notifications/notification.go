package notifications

import "time"

// Kind identifies which notice to send.
type Kind string

const (
	KindSubscriptionConfirmed Kind = "subscription_confirmed"
	KindCancellationScheduled Kind = "cancellation_scheduled"
	KindSubscriptionCancelled Kind = "subscription_cancelled"
	KindPaymentFailed         Kind = "payment_failed"
	KindCreditsGranted        Kind = "credits_granted"
	KindSubscriptionSuspended Kind = "subscription_suspended"
	KindPlanChanged           Kind = "plan_changed"
)

// Notification describes one notice to a user.
type Notification struct {
	Kind           Kind              `json:"kind"`
	UserID         string            `json:"user_id"`
	Email          string            `json:"email,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	Plan           string            `json:"plan,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
