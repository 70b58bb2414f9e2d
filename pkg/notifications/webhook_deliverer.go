package notifications

import (
	"context"

	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

// WebhookSender posts a JSON payload to a URL.
type WebhookSender interface {
	Send(ctx context.Context, target string, data any) error
}

// WebhookDeliverer forwards every notification as a signed JSON webhook,
// typically to an operator endpoint.
type WebhookDeliverer struct {
	sender WebhookSender
	target string
}

func NewWebhookDeliverer(sender WebhookSender, target string) *WebhookDeliverer {
	if sender == nil {
		panic("notifications: webhook sender cannot be nil")
	}
	return &WebhookDeliverer{sender: sender, target: target}
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, n Notification) error {
	return d.sender.Send(ctx, d.target, n)
}

var _ WebhookSender = (*webhook.Sender)(nil)
