// Package notifications delivers best-effort user notices about billing
// state changes: confirmations, scheduled and immediate cancellations,
// payment failures, suspensions and plan changes.
//
// Delivery never participates in the billing transaction. Callers hand
// notifications to a Dispatcher after the state change has committed; the
// dispatcher queues them, delivers from background workers with a bounded
// timeout and logs failures instead of returning them. A full queue drops the
// notification rather than blocking the caller.
package notifications
