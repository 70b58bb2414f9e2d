// Package stripe turns Stripe webhooks into subscription.BillingEvent values
// and switches subscription prices through the Stripe API.
//
// Signatures in the Stripe-Signature header are checked with the stripe-go
// webhook package. Event mapping:
//
//	customer.subscription.created  -> activated
//	customer.subscription.updated  -> updated, or cancelled (scheduled) when cancel_at_period_end turns on
//	customer.subscription.deleted  -> cancelled (immediate)
//	invoice.paid                   -> renewed for subscription_cycle invoices, payment_succeeded otherwise
//	invoice.payment_failed         -> payment_failed
//	checkout.session.completed     -> payment_succeeded (one-shot) in payment mode
//
// The user id is read from metadata.user_id.
package stripe
