package paddle

import (
	"fmt"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Config holds Paddle credentials. Webhooks are accepted only when a secret
// is set or verification is explicitly skipped.
type Config struct {
	APIKey           string `env:"PADDLE_API_KEY"`
	WebhookSecret    string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment      string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	SkipVerification bool   `env:"PADDLE_SKIP_VERIFICATION" envDefault:"false"`
}

func (c Config) Enabled() bool {
	return c.WebhookSecret != "" || c.SkipVerification
}

// NewClient builds an API client for the configured environment.
func NewClient(cfg Config) (*paddlesdk.SDK, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: paddle API key is required", ErrNotConfigured)
	}

	var (
		client *paddlesdk.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddlesdk.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddlesdk.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: invalid paddle environment %q", ErrNotConfigured, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}
	return client, nil
}

var _ subscription.Normalizer = (*Normalizer)(nil)
