package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

const signatureHeader = "Stripe-Signature"

// Normalizer verifies and maps Stripe webhooks.
type Normalizer struct {
	secret    string
	tolerance time.Duration
	skip      bool
}

func NewNormalizer(cfg Config) (*Normalizer, error) {
	if !cfg.SkipVerification && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrNotConfigured)
	}
	tol := cfg.Tolerance
	if tol <= 0 {
		tol = webhook.DefaultTolerance
	}
	return &Normalizer{secret: cfg.WebhookSecret, tolerance: tol, skip: cfg.SkipVerification}, nil
}

func (n *Normalizer) Provider() subscription.Provider { return subscription.ProviderStripe }

func (n *Normalizer) Normalize(_ context.Context, body []byte, header http.Header) (*subscription.BillingEvent, error) {
	if !n.skip {
		sig := header.Get(signatureHeader)
		if sig == "" {
			return nil, fmt.Errorf("%w: missing %s header", subscription.ErrInvalidSignature, signatureHeader)
		}
		if err := webhook.ValidatePayloadWithTolerance(body, sig, n.secret, n.tolerance); err != nil {
			return nil, fmt.Errorf("%w: %w", subscription.ErrInvalidSignature, err)
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", subscription.ErrMalformedPayload, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: id and type are required", subscription.ErrMalformedPayload)
	}

	ev := &subscription.BillingEvent{
		Provider:          subscription.ProviderStripe,
		EventID:           env.ID,
		Type:              subscription.EventUnhandled,
		ProviderEventType: env.Type,
		OccurredAt:        unix(env.Created),
		RawPayload:        body,
	}

	var err error
	switch stripeapi.EventType(env.Type) {
	case stripeapi.EventTypeCustomerSubscriptionCreated,
		stripeapi.EventTypeCustomerSubscriptionUpdated,
		stripeapi.EventTypeCustomerSubscriptionDeleted:
		err = mapSubscription(ev, env)
	case stripeapi.EventTypeInvoicePaid, stripeapi.EventTypeInvoicePaymentFailed:
		err = mapInvoice(ev, env)
	case stripeapi.EventTypeCheckoutSessionCompleted:
		err = mapCheckout(ev, env)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object             json.RawMessage `json:"object"`
		PreviousAttributes map[string]any  `json:"previous_attributes"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	Metadata           map[string]string `json:"metadata"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CancelAt           int64             `json:"cancel_at"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Quantity           int64 `json:"quantity"`
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID            string `json:"id"`
	BillingReason string `json:"billing_reason"`
	Subscription  string `json:"subscription"`
	CustomerEmail string `json:"customer_email"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
	SubscriptionDetails *struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Lines struct {
		Data []struct {
			Quantity int64 `json:"quantity"`
			Period   struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
			Price *struct {
				ID string `json:"id"`
			} `json:"price"`
			Pricing *struct {
				PriceDetails *struct {
					Price string `json:"price"`
				} `json:"price_details"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"lines"`
}

type checkoutObject struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func mapSubscription(ev *subscription.BillingEvent, env envelope) error {
	var s subscriptionObject
	if err := decode(env.Data.Object, &s); err != nil {
		return err
	}
	if s.ID == "" {
		return fmt.Errorf("%w: subscription id is missing", subscription.ErrMalformedPayload)
	}

	ev.ProviderSubscriptionID = s.ID
	ev.ProviderStatus = s.Status
	ev.UserID = s.Metadata["user_id"]
	ev.Email = s.Metadata["email"]
	ev.PeriodStart, ev.PeriodEnd = unix(s.CurrentPeriodStart), unix(s.CurrentPeriodEnd)
	if len(s.Items.Data) > 0 {
		it := s.Items.Data[0]
		ev.PriceID = it.Price.ID
		ev.Quantity = it.Quantity
		if it.CurrentPeriodEnd > 0 {
			ev.PeriodStart, ev.PeriodEnd = unix(it.CurrentPeriodStart), unix(it.CurrentPeriodEnd)
		}
	}

	switch stripeapi.EventType(env.Type) {
	case stripeapi.EventTypeCustomerSubscriptionCreated:
		ev.Type = subscription.EventActivated
	case stripeapi.EventTypeCustomerSubscriptionDeleted:
		ev.Type = subscription.EventCancelled
	case stripeapi.EventTypeCustomerSubscriptionUpdated:
		prev, flipped := env.Data.PreviousAttributes["cancel_at_period_end"].(bool)
		if s.CancelAtPeriodEnd && flipped && !prev {
			ev.Type = subscription.EventCancelled
			ev.EffectiveAt = ev.PeriodEnd
			if s.CancelAt > 0 {
				ev.EffectiveAt = unix(s.CancelAt)
			}
			return nil
		}
		ev.Type = subscription.EventUpdated
		cancel := s.CancelAtPeriodEnd
		ev.CancelAtPeriodEnd = &cancel
	}
	return nil
}

func mapInvoice(ev *subscription.BillingEvent, env envelope) error {
	var inv invoiceObject
	if err := decode(env.Data.Object, &inv); err != nil {
		return err
	}

	var meta map[string]string
	subID := inv.Subscription
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		if subID == "" {
			subID = inv.Parent.SubscriptionDetails.Subscription
		}
		meta = inv.Parent.SubscriptionDetails.Metadata
	}
	if meta == nil && inv.SubscriptionDetails != nil {
		meta = inv.SubscriptionDetails.Metadata
	}
	if subID == "" {
		// Invoices outside a subscription are not billing state changes.
		ev.ProviderSubscriptionID = inv.ID
		return nil
	}

	ev.ProviderSubscriptionID = subID
	ev.UserID = meta["user_id"]
	ev.Email = inv.CustomerEmail
	if len(inv.Lines.Data) > 0 {
		line := inv.Lines.Data[0]
		ev.PeriodStart, ev.PeriodEnd = unix(line.Period.Start), unix(line.Period.End)
		ev.Quantity = line.Quantity
		switch {
		case line.Pricing != nil && line.Pricing.PriceDetails != nil:
			ev.PriceID = line.Pricing.PriceDetails.Price
		case line.Price != nil:
			ev.PriceID = line.Price.ID
		}
	}

	if stripeapi.EventType(env.Type) == stripeapi.EventTypeInvoicePaymentFailed {
		ev.Type = subscription.EventPaymentFailed
		return nil
	}
	if inv.BillingReason == string(stripeapi.InvoiceBillingReasonSubscriptionCycle) {
		ev.Type = subscription.EventRenewed
		return nil
	}
	ev.Type = subscription.EventPaymentSucceeded
	return nil
}

func mapCheckout(ev *subscription.BillingEvent, env envelope) error {
	var cs checkoutObject
	if err := decode(env.Data.Object, &cs); err != nil {
		return err
	}
	if cs.ID == "" {
		return fmt.Errorf("%w: checkout session id is missing", subscription.ErrMalformedPayload)
	}

	ev.ProviderSubscriptionID = cs.ID
	if cs.Mode != string(stripeapi.CheckoutSessionModePayment) || cs.PaymentStatus != "paid" {
		return nil
	}

	ev.Type = subscription.EventPaymentSucceeded
	ev.OneShot = true
	ev.UserID = cs.Metadata["user_id"]
	ev.PriceID = cs.Metadata["price_id"]
	ev.Email = cs.CustomerEmail
	if ev.Email == "" && cs.CustomerDetails != nil {
		ev.Email = cs.CustomerDetails.Email
	}
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: data.object is missing", subscription.ErrMalformedPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", subscription.ErrMalformedPayload, err)
	}
	return nil
}

func unix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
