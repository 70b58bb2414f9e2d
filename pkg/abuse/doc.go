// Package abuse watches consumption velocity and decides when a user must be
// flagged or suspended.
//
// Every admitted unit is recorded in a trailing 24-hour window, separate from
// the monthly quota. Crossing the alert threshold only logs for review.
// Crossing the strictly higher suspend threshold returns VerdictSuspend; the
// caller then suspends the user's subscriptions through the state machine,
// which records the change under the abuse_guard audit source.
//
// Two window stores are provided: MemoryStore for a single instance and
// RedisStore, a sorted set per user, for deployments with several instances.
package abuse
