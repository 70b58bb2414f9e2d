package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

const signatureHeader = "Paddle-Signature"

// Normalizer verifies and maps Paddle webhooks.
type Normalizer struct {
	verifier *paddlesdk.WebhookVerifier
	skip     bool
}

// NewNormalizer returns a normalizer for cfg. A missing secret is an error
// unless verification is skipped.
func NewNormalizer(cfg Config) (*Normalizer, error) {
	if cfg.SkipVerification {
		return &Normalizer{skip: true}, nil
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrNotConfigured)
	}
	return &Normalizer{verifier: paddlesdk.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

func (n *Normalizer) Provider() subscription.Provider { return subscription.ProviderPaddle }

func (n *Normalizer) Normalize(ctx context.Context, body []byte, header http.Header) (*subscription.BillingEvent, error) {
	if !n.skip {
		if err := n.verify(ctx, body, header); err != nil {
			return nil, err
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", subscription.ErrMalformedPayload, err)
	}
	if env.EventID == "" || env.EventType == "" {
		return nil, fmt.Errorf("%w: event_id and event_type are required", subscription.ErrMalformedPayload)
	}

	ev := &subscription.BillingEvent{
		Provider:          subscription.ProviderPaddle,
		EventID:           env.EventID,
		Type:              subscription.EventUnhandled,
		ProviderEventType: env.EventType,
		OccurredAt:        env.OccurredAt,
		RawPayload:        body,
	}

	var err error
	switch {
	case strings.HasPrefix(env.EventType, "subscription."):
		err = mapSubscription(ev, env)
	case strings.HasPrefix(env.EventType, "transaction."):
		err = mapTransaction(ev, env)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (n *Normalizer) verify(ctx context.Context, body []byte, header http.Header) error {
	sig := header.Get(signatureHeader)
	if sig == "" {
		return fmt.Errorf("%w: missing %s header", subscription.ErrInvalidSignature, signatureHeader)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set(signatureHeader, sig)

	ok, err := n.verifier.Verify(req)
	if err != nil {
		return fmt.Errorf("%w: %w", subscription.ErrInvalidSignature, err)
	}
	if !ok {
		return fmt.Errorf("%w: signature mismatch", subscription.ErrInvalidSignature)
	}
	return nil
}

type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type period struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type item struct {
	PriceID  string `json:"price_id"`
	Quantity int64  `json:"quantity"`
	Price    *struct {
		ID string `json:"id"`
	} `json:"price"`
}

func (i item) priceID() string {
	if i.Price != nil && i.Price.ID != "" {
		return i.Price.ID
	}
	return i.PriceID
}

type subscriptionData struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	CustomerID           string         `json:"customer_id"`
	CustomData           map[string]any `json:"custom_data"`
	Items                []item         `json:"items"`
	CurrentBillingPeriod *period        `json:"current_billing_period"`
	ScheduledChange      *struct {
		Action      string    `json:"action"`
		EffectiveAt time.Time `json:"effective_at"`
	} `json:"scheduled_change"`
}

type transactionData struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Origin         string         `json:"origin"`
	SubscriptionID string         `json:"subscription_id"`
	CustomerID     string         `json:"customer_id"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []item         `json:"items"`
	BillingPeriod  *period        `json:"billing_period"`
}

func mapSubscription(ev *subscription.BillingEvent, env envelope) error {
	var d subscriptionData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return fmt.Errorf("%w: subscription data: %w", subscription.ErrMalformedPayload, err)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: subscription id is missing", subscription.ErrMalformedPayload)
	}

	ev.ProviderSubscriptionID = d.ID
	ev.ProviderStatus = d.Status
	ev.UserID, ev.Email = identity(d.CustomData)
	if len(d.Items) > 0 {
		ev.PriceID = d.Items[0].priceID()
		ev.Quantity = d.Items[0].Quantity
	}
	if d.CurrentBillingPeriod != nil {
		ev.PeriodStart = d.CurrentBillingPeriod.StartsAt
		ev.PeriodEnd = d.CurrentBillingPeriod.EndsAt
	}

	cancelScheduled := d.ScheduledChange != nil && d.ScheduledChange.Action == "cancel"

	switch env.EventType {
	case "subscription.created", "subscription.activated":
		ev.Type = subscription.EventActivated
	case "subscription.updated":
		if cancelScheduled {
			ev.Type = subscription.EventCancelled
			ev.EffectiveAt = d.ScheduledChange.EffectiveAt
			if ev.EffectiveAt.IsZero() {
				ev.EffectiveAt = ev.PeriodEnd
			}
			return nil
		}
		ev.Type = subscription.EventUpdated
		ev.CancelAtPeriodEnd = &cancelScheduled
	case "subscription.paused", "subscription.resumed", "subscription.past_due":
		ev.Type = subscription.EventUpdated
	case "subscription.canceled":
		ev.Type = subscription.EventCancelled
	}
	return nil
}

func mapTransaction(ev *subscription.BillingEvent, env envelope) error {
	var d transactionData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return fmt.Errorf("%w: transaction data: %w", subscription.ErrMalformedPayload, err)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: transaction id is missing", subscription.ErrMalformedPayload)
	}

	ev.ProviderStatus = d.Status
	ev.UserID, ev.Email = identity(d.CustomData)
	if len(d.Items) > 0 {
		ev.PriceID = d.Items[0].priceID()
		ev.Quantity = d.Items[0].Quantity
	}
	if d.BillingPeriod != nil {
		ev.PeriodStart = d.BillingPeriod.StartsAt
		ev.PeriodEnd = d.BillingPeriod.EndsAt
	}

	ev.ProviderSubscriptionID = d.SubscriptionID
	if d.SubscriptionID == "" {
		ev.ProviderSubscriptionID = d.ID
		ev.OneShot = true
	}

	switch env.EventType {
	case "transaction.completed":
		if !ev.OneShot && d.Origin == "subscription_recurring" {
			ev.Type = subscription.EventRenewed
			return nil
		}
		ev.Type = subscription.EventPaymentSucceeded
	case "transaction.payment_failed":
		if ev.OneShot {
			// A failed one-off checkout has nothing to move.
			return nil
		}
		ev.Type = subscription.EventPaymentFailed
	}
	return nil
}

func identity(custom map[string]any) (userID, email string) {
	if v, ok := custom["user_id"].(string); ok {
		userID = v
	}
	if userID == "" {
		if v, ok := custom["customer_id"].(string); ok {
			userID = v
		}
	}
	if v, ok := custom["email"].(string); ok {
		email = v
	}
	return userID, email
}
