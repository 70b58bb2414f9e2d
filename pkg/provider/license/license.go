// Package license accepts signed license-key webhooks. A license activation
// is a one-shot credit grant keyed by the license key; a revocation cancels
// that grant immediately.
package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

var ErrNotConfigured = errors.New("license: provider is not configured")

// Config holds the shared signing secret.
type Config struct {
	WebhookSecret    string        `env:"LICENSE_WEBHOOK_SECRET"`
	MaxAge           time.Duration `env:"LICENSE_WEBHOOK_MAX_AGE" envDefault:"5m"`
	SkipVerification bool          `env:"LICENSE_SKIP_VERIFICATION" envDefault:"false"`
}

func (c Config) Enabled() bool {
	return c.WebhookSecret != "" || c.SkipVerification
}

const (
	eventActivated = "license.activated"
	eventRevoked   = "license.revoked"
)

type payload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		LicenseKey string `json:"license_key"`
		UserID     string `json:"user_id"`
		Email      string `json:"email"`
		Plan       string `json:"plan"`
		Quantity   int64  `json:"quantity"`
	} `json:"data"`
}

// Normalizer verifies and maps license webhooks.
type Normalizer struct {
	cfg Config
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for the replay window.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

func NewNormalizer(cfg Config, opts ...Option) (*Normalizer, error) {
	if !cfg.SkipVerification && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret is required", ErrNotConfigured)
	}
	n := &Normalizer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Normalizer) Provider() subscription.Provider { return subscription.ProviderLicense }

func (n *Normalizer) Normalize(_ context.Context, body []byte, header http.Header) (*subscription.BillingEvent, error) {
	var deliveryID string
	if !n.cfg.SkipVerification {
		sig, err := webhook.ParseHeaders(header)
		if err != nil {
			return nil, errors.Join(subscription.ErrInvalidSignature, err)
		}
		if err := webhook.Verify(n.cfg.WebhookSecret, body, sig, n.cfg.MaxAge, n.now()); err != nil {
			if errors.Is(err, webhook.ErrInvalidPayload) {
				return nil, errors.Join(subscription.ErrMalformedPayload, err)
			}
			return nil, errors.Join(subscription.ErrInvalidSignature, err)
		}
		deliveryID = sig.ID
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", subscription.ErrMalformedPayload, err)
	}
	if p.Data.LicenseKey == "" {
		return nil, fmt.Errorf("%w: license_key is required", subscription.ErrMalformedPayload)
	}

	ev := &subscription.BillingEvent{
		Provider:               subscription.ProviderLicense,
		EventID:                p.ID,
		Type:                   subscription.EventUnhandled,
		ProviderEventType:      p.Type,
		ProviderSubscriptionID: p.Data.LicenseKey,
		UserID:                 p.Data.UserID,
		Email:                  p.Data.Email,
		Plan:                   subscription.Plan(p.Data.Plan),
		Quantity:               p.Data.Quantity,
		OccurredAt:             p.CreatedAt,
		RawPayload:             body,
	}
	if ev.EventID == "" {
		ev.EventID = deliveryID
	}

	switch p.Type {
	case eventActivated:
		ev.Type = subscription.EventPaymentSucceeded
		ev.OneShot = true
	case eventRevoked:
		ev.Type = subscription.EventCancelled
	}
	return ev, nil
}
