// Package httpserver runs the service's http.Server with graceful shutdown
// and provides liveness and readiness handlers.
//
// Run binds the listener, serves until its context is cancelled or Shutdown
// is called, and then drains in-flight requests within
// Config.ShutdownTimeout. Signal handling is left to the caller:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	r := chi.NewRouter()
//	r.Get("/livez", httpserver.HealthCheckHandler(log, 0))
//	r.Get("/readyz", httpserver.HealthCheckHandler(log, 2*time.Second,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//
//	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("http server stopped", logger.Error(err))
//	}
//
// Listen and serve failures are wrapped with ErrStart and drain failures with
// ErrShutdown.
package httpserver
