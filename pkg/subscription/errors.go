package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSubscriptionExists   = errors.New("subscription already exists")

	// ErrUnresolvable marks events that cannot be linked to a user or plan.
	// They are acknowledged to the provider and left for manual follow-up.
	ErrUnresolvable = errors.New("billing event cannot be resolved")

	ErrUnknownProvider  = errors.New("unknown billing provider")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	ErrUnknownPlan    = errors.New("unknown plan")
	ErrInvalidCatalog = errors.New("invalid plan catalog")

	ErrNotSuspended = errors.New("subscription is not suspended")
)
