// Package paddle turns Paddle Billing webhooks into subscription.BillingEvent
// values and switches subscription prices through the Paddle API.
//
// Webhooks are authenticated with the Paddle-Signature header using the
// SDK's WebhookVerifier. Event mapping:
//
//	subscription.created, subscription.activated  -> activated
//	subscription.updated                          -> updated, or cancelled (scheduled) when a cancel is scheduled
//	subscription.paused|resumed|past_due          -> updated
//	subscription.canceled                         -> cancelled (immediate)
//	transaction.completed                         -> renewed for recurring origins, payment_succeeded otherwise
//	transaction.payment_failed                    -> payment_failed
//
// Transactions without a subscription id are one-shot purchases keyed by the
// transaction id. The user id is read from custom_data.user_id, falling back
// to custom_data.customer_id.
package paddle
