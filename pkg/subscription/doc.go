// Package subscription holds the billing domain model and the state machine
// that reconciles provider events into it.
//
// Payment providers describe the same occurrences with different schemas.
// Each provider package implements Normalizer and turns a signed webhook into
// a canonical BillingEvent; the Registry picks the normalizer by provider
// name. Machine.Apply then moves the matching Subscription through the
// transition table. The machine never branches on provider identity.
//
// Apply is meant to run inside the transaction opened by the idempotency
// ledger. Every write it makes is keyed by (provider, provider subscription
// id) and sets computed values rather than applying deltas, so replaying an
// event converges on the same row instead of double-granting usage.
//
// Rows carry the plan's usage limit and counter. Counting and lazy period
// rollover live in the usage package; this package only defines the period
// arithmetic they share.
package subscription
