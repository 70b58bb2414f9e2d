// Package billing mounts the HTTP surface of the billing service on a chi
// router: provider webhooks, usage admission, plan changes, operator
// endpoints, health probes and Prometheus metrics.
//
// Every route goes through handler.Wrap with path, query and JSON binders
// and one JSON error handler that maps domain errors to status codes:
//
//	mod := billing.New(svc,
//		billing.WithLogger(log),
//		billing.WithMetrics(m, registry),
//		billing.WithOperatorToken(cfg.OperatorToken),
//		billing.WithHealthChecks(httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)}),
//	)
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
//	err := srv.Run(ctx, mod.Handler())
//
// Operator routes (unsuspend, history) are mounted only when an operator
// token is configured and require "Authorization: Bearer <token>".
package billing
