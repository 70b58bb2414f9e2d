package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/mrz1836/postmark"
)

// Postmark sends through the Postmark transactional API. Replies go to
// Config.ReplyTo.
type Postmark struct {
	client        *postmark.Client
	from, replyTo string
}

func NewPostmark(cfg Config) (*Postmark, error) {
	if cfg.ServerToken == "" || cfg.AccountToken == "" {
		return nil, fmt.Errorf("%w: both postmark tokens are required", ErrConfig)
	}
	for name, addr := range map[string]string{"from": cfg.From, "reply-to": cfg.ReplyTo} {
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("%w: %s address %q", ErrConfig, name, addr)
		}
	}
	return &Postmark{
		client:  postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}, nil
}

func (p *Postmark) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	res, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		ReplyTo:  p.replyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTML,
	})
	if err != nil {
		return errors.Join(ErrSend, err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("%w: postmark code %d: %s", ErrSend, res.ErrorCode, res.Message)
	}
	return nil
}
