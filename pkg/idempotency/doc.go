// Package idempotency records which provider events have been applied.
//
// A claim is an insert-if-absent keyed by (provider, event id) that runs in
// the same transaction as the state change it guards. Either both commit or
// neither does, so a crash between claiming and applying leaves no marker and
// the provider's retry is processed normally, while a committed marker turns
// every later delivery into a duplicate.
//
//	applied, err := ledger.Apply(ctx, "paddle", eventID, func(ctx context.Context) error {
//	    _, err := machine.Apply(ctx, event)
//	    return err
//	})
//
// Markers are kept for a retention window and removed by Pruner on a cron
// schedule.
package idempotency
