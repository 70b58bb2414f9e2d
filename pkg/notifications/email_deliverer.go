package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/dmitrymomot/billingcore/pkg/email"
)

type message struct {
	subject string
	body    *template.Template
}

var messages = map[Kind]message{
	KindSubscriptionConfirmed: {
		subject: "Your subscription is active",
		body:    template.Must(template.New("confirmed").Parse(`<p>Your {{.Plan}} subscription is now active.</p>`)),
	},
	KindCancellationScheduled: {
		subject: "Your subscription will end",
		body:    template.Must(template.New("scheduled").Parse(`<p>Your {{.Plan}} subscription stays active until {{index .Data "period_end"}} and will not renew.</p>`)),
	},
	KindSubscriptionCancelled: {
		subject: "Your subscription was cancelled",
		body:    template.Must(template.New("cancelled").Parse(`<p>Your {{.Plan}} subscription has been cancelled.</p>`)),
	},
	KindPaymentFailed: {
		subject: "We could not process your payment",
		body:    template.Must(template.New("payment_failed").Parse(`<p>The latest payment for your {{.Plan}} subscription failed. Please update your payment method.</p>`)),
	},
	KindCreditsGranted: {
		subject: "Your credits are ready",
		body:    template.Must(template.New("credits").Parse(`<p>{{index .Data "credits"}} credits were added to your account.</p>`)),
	},
	KindSubscriptionSuspended: {
		subject: "Your account is on hold",
		body:    template.Must(template.New("suspended").Parse(`<p>We paused usage on your account after unusual activity. Contact support to restore access.</p>`)),
	},
	KindPlanChanged: {
		subject: "Your plan was changed",
		body:    template.Must(template.New("plan_changed").Parse(`<p>You are now on the {{.Plan}} plan. {{index .Data "summary"}}</p>`)),
	},
}

// EmailDeliverer renders a notification into an email.
// Notifications without a recipient address are skipped.
type EmailDeliverer struct {
	sender email.Sender
}

func NewEmailDeliverer(sender email.Sender) *EmailDeliverer {
	if sender == nil {
		panic("notifications: email sender cannot be nil")
	}
	return &EmailDeliverer{sender: sender}
}

func (d *EmailDeliverer) Deliver(ctx context.Context, n Notification) error {
	if n.Email == "" {
		return nil
	}

	msg, ok := messages[n.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, n.Kind)
	}

	var body bytes.Buffer
	if err := msg.body.Execute(&body, n); err != nil {
		return fmt.Errorf("render %s: %w", n.Kind, err)
	}

	return d.sender.Send(ctx, email.Message{
		To:      n.Email,
		Subject: msg.subject,
		HTML:    body.String(),
		Tag:     string(n.Kind),
	})
}
