// Package webhook signs, verifies and delivers HMAC-SHA256 authenticated
// webhooks.
//
// The signature scheme binds the payload to a unix timestamp:
//
//	X-Webhook-Signature: hex(HMAC-SHA256(secret, "<timestamp>.<payload>"))
//	X-Webhook-Timestamp: <unix seconds>
//	X-Webhook-ID:        <uuid>
//
// Inbound requests are checked with ParseHeaders and Verify; Verify rejects
// signatures older than the supplied maximum age and timestamps more than a
// minute in the future.
//
//	sig, err := webhook.ParseHeaders(r.Header)
//	if err != nil {
//		return err
//	}
//	if err := webhook.Verify(secret, body, sig, 5*time.Minute, time.Now()); err != nil {
//		return err
//	}
//
// Sender posts JSON payloads with retries and exponential backoff. Responses
// in the 4xx range other than 408, 425 and 429 are treated as permanent and
// are not retried.
//
//	sender := webhook.NewSender(webhook.WithSecret(secret), webhook.WithMaxRetries(3))
//	err := sender.Send(ctx, "https://ops.example.com/hooks/billing", payload)
package webhook
