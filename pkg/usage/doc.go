// Package usage admits or denies one unit of consumption per call.
//
// TryConsume charges a user's pay-per-use grants first, least remaining
// first, then the recurring subscription. Every write is a single conditional
// statement on the store: an increment guarded by the limit and by the reset
// boundary the caller observed, or a rollover that moves the row into the
// current window and counts the admitted unit in the same write. A write that
// matches no row means another request got there first; the meter re-reads
// and decides again, up to a bounded number of attempts.
//
// Usage above the limit is never clamped. It can only come from a path that
// bypassed the meter, so it is logged as a correctness alert and denied.
package usage
