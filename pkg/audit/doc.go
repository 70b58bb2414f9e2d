// Package audit records the transition history of subscriptions.
//
// Every state change gets one Event naming the action, who caused it (the
// Source), and the status before and after. Sources separate provider-driven
// changes from ones the service made on its own, most importantly abuse-guard
// suspensions, so an operator reading the history can tell why a subscription
// stopped admitting usage.
//
// Storage implementations receive the caller's context. The Postgres store
// writes through the transaction carried by that context, which places the
// audit row in the same commit as the change it describes.
package audit
