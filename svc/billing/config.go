package billing

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/abuse"
	"github.com/dmitrymomot/billingcore/pkg/archive"
	"github.com/dmitrymomot/billingcore/pkg/email"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/pg"
	"github.com/dmitrymomot/billingcore/pkg/provider/license"
	"github.com/dmitrymomot/billingcore/pkg/provider/paddle"
	"github.com/dmitrymomot/billingcore/pkg/provider/stripe"
	"github.com/dmitrymomot/billingcore/pkg/redis"
)

const EnvProduction = "production"

// Config is the process configuration of the billing service.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	CatalogPath string `env:"PLAN_CATALOG_PATH"` // YAML catalog; built-in defaults when empty

	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	MarkerRetention  time.Duration `env:"IDEMPOTENCY_RETENTION" envDefault:"2160h"`
	PruneSchedule    string        `env:"IDEMPOTENCY_PRUNE_SCHEDULE" envDefault:"@daily"`
	OperatorToken    string        `env:"OPERATOR_TOKEN"` // operator endpoints are mounted only when set
	RequestIDHeaders []string      `env:"REQUEST_ID_HEADERS" envSeparator:","`

	Notifications NotificationConfig

	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Email    email.Config
	Archive  archive.Config
	Abuse    abuse.Thresholds

	Paddle  paddle.Config
	Stripe  stripe.Config
	License license.Config
}

// NotificationConfig tunes the asynchronous notification dispatcher.
type NotificationConfig struct {
	QueueSize       int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	Workers         int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	DeliveryTimeout time.Duration `env:"NOTIFY_DELIVERY_TIMEOUT" envDefault:"10s"`
	WebhookURL      string        `env:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret   string        `env:"NOTIFY_WEBHOOK_SECRET"`
}

func (c Config) Production() bool { return c.Environment == EnvProduction }

// Validate refuses unverified webhooks in production and inconsistent abuse
// thresholds.
func (c Config) Validate() error {
	if c.Production() {
		for name, skip := range map[string]bool{
			"paddle":  c.Paddle.SkipVerification,
			"stripe":  c.Stripe.SkipVerification,
			"license": c.License.SkipVerification,
		} {
			if skip {
				return fmt.Errorf("%w: %s signature verification cannot be skipped in production", ErrInvalidConfig, name)
			}
		}
	}
	if err := c.Abuse.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: provider timeout must be positive", ErrInvalidConfig)
	}
	if c.MarkerRetention <= 0 {
		return fmt.Errorf("%w: idempotency retention must be positive", ErrInvalidConfig)
	}
	if c.Notifications.WebhookURL != "" && c.Notifications.WebhookSecret == "" {
		return fmt.Errorf("%w: notification webhook requires a secret", ErrInvalidConfig)
	}
	return nil
}
