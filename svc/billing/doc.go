// Package billing wires the subscription core into one service.
//
// Webhooks flow through the provider registry, the idempotency ledger and the
// subscription machine inside a single transaction; notifications are handed
// to the dispatcher only after that transaction commits. Consumption goes
// through the usage meter and then the abuse guard, which may suspend every
// subscription of the user. Plan changes are priced by the proration
// calculator, sent to the provider under a timeout and then applied locally.
//
//	svc := billing.New(billing.Dependencies{
//		Registry: registry,
//		Ledger:   ledger,
//		Machine:  machine,
//		Meter:    meter,
//		Prorator: calculator,
//		Guard:    guard,
//		Store:    store,
//		Tx:       transactor,
//		Audit:    auditLogger,
//		History:  store,
//	}, billing.WithNotifier(dispatcher), billing.WithPlanChangers(paddleChanger, stripeChanger))
//
//	res, err := svc.HandleWebhook(ctx, "paddle", body, r.Header)
package billing
