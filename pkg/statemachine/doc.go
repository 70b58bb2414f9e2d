// Package statemachine provides a stateless finite-state transition table.
//
// A Table holds transitions keyed by source state and event. It does not keep
// a "current" state: callers pass the state they loaded from storage and get
// back the state to persist. This keeps the table safe to share between
// goroutines and between service instances, since the source of truth is
// whatever storage the caller reads from.
//
// Several transitions may be registered for the same (state, event) pair.
// They are evaluated in registration order and the first one whose guards all
// pass wins, so more specific transitions should be registered first.
//
//	table := statemachine.MustNew(
//	    statemachine.WithTransition(Active, Cancelled, Cancel,
//	        statemachine.WithGuard(isImmediate)),
//	    statemachine.WithTransition(Active, Active, Cancel,
//	        statemachine.WithAction(scheduleCancellation)),
//	)
//
//	next, err := table.Fire(ctx, Active, Cancel, data)
//
// Errors distinguish an undefined pair (ErrNoTransition) from a pair whose
// guards all rejected the input (ErrRejected); Unhandled matches either.
package statemachine
