package billing

import (
	"net/http"

	"github.com/dmitrymomot/billingcore/handler"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
	billingsvc "github.com/dmitrymomot/billingcore/svc/billing"
)

// errorMappings orders domain errors by specificity. Unlisted errors are 500.
func errorMappings() []handler.ErrorHandlerOption {
	invalidPlan := handler.NewHTTPError(http.StatusUnprocessableEntity, "invalid_plan")
	unavailable := handler.NewHTTPError(http.StatusServiceUnavailable, "retry_later")

	return []handler.ErrorHandlerOption{
		handler.WithErrorMapping(subscription.ErrInvalidSignature, handler.NewHTTPError(http.StatusUnauthorized, "invalid_signature")),
		handler.WithErrorMapping(subscription.ErrMalformedPayload, handler.NewHTTPError(http.StatusBadRequest, "malformed_payload")),
		handler.WithErrorMapping(subscription.ErrUnknownProvider, handler.NewHTTPError(http.StatusNotFound, "unknown_provider")),
		handler.WithErrorMapping(subscription.ErrSubscriptionNotFound, handler.NewHTTPError(http.StatusNotFound, "subscription_not_found")),
		handler.WithErrorMapping(billingsvc.ErrNoActiveSubscription, handler.NewHTTPError(http.StatusNotFound, "no_active_subscription")),
		handler.WithErrorMapping(billingsvc.ErrSuspended, handler.NewHTTPError(http.StatusConflict, "subscription_suspended")),
		handler.WithErrorMapping(subscription.ErrNotSuspended, handler.NewHTTPError(http.StatusConflict, "not_suspended")),
		handler.WithErrorMapping(billingsvc.ErrInvalidPlan, invalidPlan),
		handler.WithErrorMapping(subscription.ErrUnknownPlan, invalidPlan),
		handler.WithErrorMapping(proration.ErrSamePlan, invalidPlan),
		handler.WithErrorMapping(proration.ErrNotRecurring, invalidPlan),
		handler.WithErrorMapping(proration.ErrCurrencyMismatch, invalidPlan),
		handler.WithErrorMapping(billingsvc.ErrProviderTimeout, unavailable),
		handler.WithErrorMapping(usage.ErrContention, unavailable),
		handler.WithErrorMapping(billingsvc.ErrProviderFailed, handler.NewHTTPError(http.StatusBadGateway, "provider_failed")),
	}
}
