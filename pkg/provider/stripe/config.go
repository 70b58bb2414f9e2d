package stripe

import (
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
)

// Config holds Stripe credentials.
type Config struct {
	APIKey           string        `env:"STRIPE_API_KEY"`
	WebhookSecret    string        `env:"STRIPE_WEBHOOK_SECRET"`
	Tolerance        time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
	SkipVerification bool          `env:"STRIPE_SKIP_VERIFICATION" envDefault:"false"`
}

func (c Config) Enabled() bool {
	return c.WebhookSecret != "" || c.SkipVerification
}

// NewClient returns a subscription API client bound to cfg.APIKey without
// touching the package-level stripe.Key.
func NewClient(cfg Config) (*stripesub.Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return &stripesub.Client{B: stripeapi.GetBackend(stripeapi.APIBackend), Key: cfg.APIKey}, nil
}
