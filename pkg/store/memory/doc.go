// Package memory is an in-process implementation of every billing store
// contract: subscriptions, idempotency markers, usage counters and audit
// history.
//
// Transactions are serialised by a single lock and undone from a journal on
// error, which is enough to model the row locks and atomic commit of the
// Postgres store in tests and single-instance deployments. Meter primitives
// run outside that lock and are atomic on their own, like the single-statement
// conditional updates they stand in for.
package memory
