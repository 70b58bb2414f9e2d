package email

import (
	"context"
	"fmt"
	"net/mail"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"-"`
	Tag     string `json:"tag,omitempty"`
}

func (m Message) validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrMessage, m.To, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrMessage)
	}
	if m.HTML == "" {
		return fmt.Errorf("%w: empty body", ErrMessage)
	}
	return nil
}

// Config selects and configures the Sender. Without Postmark tokens New
// falls back to DevSender.
type Config struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	From         string `env:"EMAIL_FROM" envDefault:"billing@localhost"`
	ReplyTo      string `env:"EMAIL_REPLY_TO" envDefault:"support@localhost"`
	DevDir       string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
}

func New(cfg Config) (Sender, error) {
	if cfg.ServerToken == "" && cfg.AccountToken == "" {
		return NewDevSender(cfg.DevDir), nil
	}
	return NewPostmark(cfg)
}
