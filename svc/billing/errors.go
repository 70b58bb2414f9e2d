package billing

import "errors"

var (
	ErrNoActiveSubscription = errors.New("user has no active recurring subscription")
	ErrSuspended            = errors.New("subscription is suspended")
	ErrInvalidPlan          = errors.New("plan cannot be selected")
	ErrProviderUnavailable  = errors.New("no plan changer for subscription provider")
	ErrPriceNotConfigured   = errors.New("plan has no price for the subscription provider")

	// ErrProviderTimeout is retryable.
	ErrProviderTimeout = errors.New("billing provider did not respond in time")
	ErrProviderFailed  = errors.New("billing provider rejected the request")

	ErrInvalidConfig = errors.New("invalid billing configuration")
)
