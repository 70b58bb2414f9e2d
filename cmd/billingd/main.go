// Command billingd runs the billing service: provider webhooks, usage
// admission and plan changes over HTTP, backed by Postgres and optionally
// Redis for velocity tracking.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/billingcore/db"
	billinghttp "github.com/dmitrymomot/billingcore/modules/billing"
	"github.com/dmitrymomot/billingcore/pkg/abuse"
	"github.com/dmitrymomot/billingcore/pkg/archive"
	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/config"
	"github.com/dmitrymomot/billingcore/pkg/email"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/idempotency"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/pg"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/provider/license"
	"github.com/dmitrymomot/billingcore/pkg/provider/paddle"
	"github.com/dmitrymomot/billingcore/pkg/provider/stripe"
	"github.com/dmitrymomot/billingcore/pkg/redis"
	"github.com/dmitrymomot/billingcore/pkg/requestid"
	"github.com/dmitrymomot/billingcore/pkg/store/postgres"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
	"github.com/dmitrymomot/billingcore/pkg/webhook"
	"github.com/dmitrymomot/billingcore/svc/billing"
)

const serviceName = "billingd"

func main() {
	var cfg billing.Config
	config.MustLoad(&cfg)

	opts := []logger.Option{
		logger.WithEnvironment(cfg.Environment, serviceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		opts = append(opts, logger.WithLevel(level))
	}
	log := logger.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("billingd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg billing.Config, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg.Postgres, log); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	catalog := subscription.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = subscription.LoadCatalog(cfg.CatalogPath); err != nil {
			return err
		}
	}

	store := postgres.New(pool)
	tx := pg.NewTransactor(pool)
	auditLog := audit.NewLogger(store, audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
		id := requestid.FromContext(ctx)
		return id, id != ""
	}))

	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}}

	var velocity abuse.VelocityStore
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		velocity = abuse.NewRedisStore(client, cfg.Redis.KeyPrefix)
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	} else {
		mem := abuse.NewMemoryStore()
		defer mem.Close()
		velocity = mem
		log.Warn("redis not configured, velocity is tracked per instance")
	}
	guard, err := abuse.NewGuard(velocity, cfg.Abuse, abuse.WithLogger(log), abuse.WithMetrics(m))
	if err != nil {
		return err
	}

	normalizers, changers, err := providers(cfg, log)
	if err != nil {
		return err
	}

	payloads, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	dispatcher, err := notifier(cfg, log, m)
	if err != nil {
		return err
	}

	ledger := idempotency.NewLedger(store, tx)
	svc := billing.New(billing.Dependencies{
		Registry: subscription.NewRegistry(normalizers...),
		Ledger:   ledger,
		Machine:  subscription.NewMachine(store, catalog, auditLog, subscription.WithMachineLogger(log)),
		Meter:    usage.NewMeter(store, catalog, usage.WithLogger(log), usage.WithMetrics(m)),
		Prorator: proration.NewCalculator(catalog),
		Guard:    guard,
		Store:    store,
		Tx:       tx,
		Audit:    auditLog,
		History:  store,
		Catalog:  catalog,
	},
		billing.WithLogger(log),
		billing.WithMetrics(m),
		billing.WithNotifier(dispatcher),
		billing.WithArchive(payloads),
		billing.WithPlanChangers(changers...),
		billing.WithProviderTimeout(cfg.ProviderTimeout),
	)

	pruner, err := idempotency.NewPruner(ledger, cfg.PruneSchedule, cfg.MarkerRetention, idempotency.WithPrunerLogger(log))
	if err != nil {
		return err
	}
	pruner.Start()

	mod := billinghttp.New(svc,
		billinghttp.WithLogger(log),
		billinghttp.WithMetrics(m, registry),
		billinghttp.WithOperatorToken(cfg.OperatorToken),
		billinghttp.WithHealthChecks(checks...),
		billinghttp.WithRequestIDHeaders(cfg.RequestIDHeaders...),
	)
	server := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, mod.Handler()) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout+5*time.Second)
		defer cancel()
		return errors.Join(
			pruner.Stop(shutdownCtx),
			dispatcher.Close(shutdownCtx),
		)
	})

	log.Info("billingd started",
		slog.Int("providers", len(normalizers)),
		slog.Bool("redis", cfg.Redis.Enabled()),
		slog.Bool("operator_api", cfg.OperatorToken != ""),
	)
	return g.Wait()
}

// providers builds a normalizer for every configured provider and a plan
// changer for every provider with API credentials.
func providers(cfg billing.Config, log *slog.Logger) ([]subscription.Normalizer, []subscription.PlanChanger, error) {
	var (
		normalizers []subscription.Normalizer
		changers    []subscription.PlanChanger
	)

	if cfg.Paddle.Enabled() {
		n, err := paddle.NewNormalizer(cfg.Paddle)
		if err != nil {
			return nil, nil, err
		}
		normalizers = append(normalizers, n)
		if cfg.Paddle.APIKey != "" {
			client, err := paddle.NewClient(cfg.Paddle)
			if err != nil {
				return nil, nil, err
			}
			changers = append(changers, paddle.NewPlanChanger(client))
		}
	}

	if cfg.Stripe.Enabled() {
		n, err := stripe.NewNormalizer(cfg.Stripe)
		if err != nil {
			return nil, nil, err
		}
		normalizers = append(normalizers, n)
		if cfg.Stripe.APIKey != "" {
			client, err := stripe.NewClient(cfg.Stripe)
			if err != nil {
				return nil, nil, err
			}
			changers = append(changers, stripe.NewPlanChanger(client))
		}
	}

	if cfg.License.Enabled() {
		n, err := license.NewNormalizer(cfg.License)
		if err != nil {
			return nil, nil, err
		}
		normalizers = append(normalizers, n)
	}

	if len(normalizers) == 0 {
		log.Warn("no billing provider configured, every webhook will be rejected")
	}
	return normalizers, changers, nil
}

// notifier fans notifications out to email and, when configured, a signed
// operator webhook.
func notifier(cfg billing.Config, log *slog.Logger, m *metrics.Metrics) (*notifications.Dispatcher, error) {
	sender, err := email.New(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	deliverers := notifications.Multi{notifications.NewEmailDeliverer(sender)}

	if cfg.Notifications.WebhookURL != "" {
		hook := webhook.NewSender(
			webhook.WithSecret(cfg.Notifications.WebhookSecret),
			webhook.WithUserAgent(serviceName),
		)
		deliverers = append(deliverers, notifications.NewWebhookDeliverer(hook, cfg.Notifications.WebhookURL))
	}

	return notifications.NewDispatcher(deliverers,
		notifications.WithLogger(log),
		notifications.WithQueueSize(cfg.Notifications.QueueSize),
		notifications.WithWorkers(cfg.Notifications.Workers),
		notifications.WithDeliveryTimeout(cfg.Notifications.DeliveryTimeout),
		notifications.WithDropHook(func(n notifications.Notification) {
			m.ObserveNotification(string(n.Kind), "dropped")
		}),
		notifications.WithFailureHook(func(n notifications.Notification, _ error) {
			m.ObserveNotification(string(n.Kind), "failed")
		}),
	), nil
}
