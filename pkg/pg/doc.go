// Package pg wraps pgx/v5 for the billing store: pool construction with
// retries, goose migrations from an embedded filesystem, SQLSTATE helpers and
// a context-carried transaction.
//
// WithTx stores the active pgx.Tx in the context it passes to the callback.
// Store methods call Conn(ctx, pool) and therefore run inside the caller's
// transaction when there is one, or directly against the pool otherwise. This
// is how the idempotency claim, the subscription write and the audit row land
// in one commit without the stores knowing about each other.
//
//	err := tx.WithTx(ctx, func(ctx context.Context) error {
//	    claimed, err := ledger.TryClaim(ctx, provider, eventID)
//	    ...
//	    return subscriptions.Update(ctx, sub)
//	})
package pg
