package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingcore/handler"
	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/binder"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

const maxHistoryLimit = 500

var (
	pathBinder  = binder.Path(chi.URLParam)
	queryBinder = binder.Query()
	jsonBinder  = binder.JSON()
)

type webhookRequest struct {
	Provider string `path:"provider"`
}

type subscriptionRequest struct {
	ID uuid.UUID `path:"id"`
}

type userRequest struct {
	UserID string `path:"user_id"`
}

type planRequest struct {
	UserID string            `path:"user_id" query:"-" json:"-"`
	Plan   subscription.Plan `query:"plan" json:"plan"`
}

func (r planRequest) validate() error {
	verr := handler.NewValidationError()
	switch r.Plan {
	case "":
		verr.Add("plan", "is required")
	case subscription.PlanFree, subscription.PlanMonthly, subscription.PlanYearly, subscription.PlanPayPerUse:
	default:
		verr.Add("plan", "is not a known plan")
	}
	return verr.Err()
}

type historyRequest struct {
	UserID         string `query:"user_id"`
	SubscriptionID string `query:"subscription_id"`
	Source         string `query:"source"`
	Action         string `query:"action"`
	Limit          int    `query:"limit"`
}

func (r historyRequest) validate() error {
	verr := handler.NewValidationError()
	if r.Limit < 0 || r.Limit > maxHistoryLimit {
		verr.Add("limit", "must be between 0 and 500")
	}
	if r.SubscriptionID != "" {
		if _, err := uuid.Parse(r.SubscriptionID); err != nil {
			verr.Add("subscription_id", "must be a UUID")
		}
	}
	switch audit.Source(r.Source) {
	case "", audit.SourceProvider, audit.SourceAbuseGuard, audit.SourceUser, audit.SourceOperator, audit.SourceMeter:
	default:
		verr.Add("source", "is not a known source")
	}
	return verr.Err()
}

func (r historyRequest) filter() audit.Filter {
	return audit.Filter{
		SubscriptionID: r.SubscriptionID,
		UserID:         r.UserID,
		Source:         audit.Source(r.Source),
		Action:         r.Action,
		Limit:          r.Limit,
	}
}

// ErrPayloadTooLarge rejects webhook bodies above the configured size.
var ErrPayloadTooLarge = handler.NewHTTPError(http.StatusRequestEntityTooLarge, "payload_too_large")
