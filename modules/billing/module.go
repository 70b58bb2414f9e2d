package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/billingcore/handler"
	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/requestid"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	billingsvc "github.com/dmitrymomot/billingcore/svc/billing"
)

// Service is the part of svc/billing the HTTP layer calls.
type Service interface {
	HandleWebhook(ctx context.Context, provider string, body []byte, header http.Header) (billingsvc.WebhookResult, error)
	Consume(ctx context.Context, id uuid.UUID) (billingsvc.Consumption, error)
	ConsumeForUser(ctx context.Context, userID string) (billingsvc.Consumption, error)
	Balance(ctx context.Context, id uuid.UUID) (int64, error)
	PreviewPlanChange(ctx context.Context, userID string, plan subscription.Plan) (proration.Quote, error)
	ChangePlan(ctx context.Context, userID string, plan subscription.Plan) (*billingsvc.PlanChange, error)
	CancelAtPeriodEnd(ctx context.Context, userID string) (*subscription.Subscription, error)
	ClearSuspension(ctx context.Context, id uuid.UUID, operator string) ([]*subscription.Subscription, error)
	History(ctx context.Context, f audit.Filter) ([]audit.Event, error)
}

// Module serves the billing API.
type Module struct {
	svc Service
	log *slog.Logger

	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
	operatorToken  string
	checks         []httpserver.Check
	healthTimeout  time.Duration
	maxWebhookSize int64
	idHeaders      []string

	errorHandler handler.ErrorHandler[handler.Context]
}

type Option func(*Module)

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records request metrics in m and exposes gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(mod *Module) {
		mod.metrics = m
		mod.gatherer = gatherer
	}
}

// WithOperatorToken enables the operator routes.
func WithOperatorToken(token string) Option {
	return func(m *Module) { m.operatorToken = token }
}

// WithHealthChecks sets the dependencies probed by /readyz.
func WithHealthChecks(checks ...httpserver.Check) Option {
	return func(m *Module) { m.checks = append(m.checks, checks...) }
}

func WithHealthTimeout(d time.Duration) Option {
	return func(m *Module) {
		if d > 0 {
			m.healthTimeout = d
		}
	}
}

// WithMaxWebhookSize limits webhook bodies. Default 1MB.
func WithMaxWebhookSize(n int64) Option {
	return func(m *Module) {
		if n > 0 {
			m.maxWebhookSize = n
		}
	}
}

// WithRequestIDHeaders lists extra inbound headers used as the request id.
func WithRequestIDHeaders(names ...string) Option {
	return func(m *Module) { m.idHeaders = append(m.idHeaders, names...) }
}

// New panics if svc is nil.
func New(svc Service, opts ...Option) *Module {
	if svc == nil {
		panic("billing: service cannot be nil")
	}
	m := &Module{
		svc:            svc,
		log:            logger.Nop(),
		healthTimeout:  3 * time.Second,
		maxWebhookSize: 1 << 20,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("billing_http"))
	m.errorHandler = handler.NewErrorHandler(m.log, errorMappings()...)
	return m
}

// Handler builds the router.
func (m *Module) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware(requestid.WithHeaders(m.idHeaders...)))
	r.Use(metrics.Middleware(m.metrics, routePattern))

	r.Get("/livez", httpserver.HealthCheckHandler(m.log, 0))
	r.Get("/readyz", httpserver.HealthCheckHandler(m.log, m.healthTimeout, m.checks...))
	if m.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(m.gatherer))
	}

	r.Post("/webhooks/{provider}", handler.Wrap(m.webhook,
		handler.WithBinders[handler.Context, webhookRequest](pathBinder),
		handler.WithErrorHandler[handler.Context, webhookRequest](m.errorHandler),
	))

	r.Route("/subscriptions/{id}", func(r chi.Router) {
		r.Post("/consume", handler.Wrap(m.consume,
			handler.WithBinders[handler.Context, subscriptionRequest](pathBinder),
			handler.WithErrorHandler[handler.Context, subscriptionRequest](m.errorHandler),
		))
		r.Get("/balance", handler.Wrap(m.balance,
			handler.WithBinders[handler.Context, subscriptionRequest](pathBinder),
			handler.WithErrorHandler[handler.Context, subscriptionRequest](m.errorHandler),
		))
		if m.operatorToken != "" {
			r.Post("/unsuspend", handler.Wrap(m.unsuspend,
				handler.WithBinders[handler.Context, subscriptionRequest](pathBinder),
				handler.WithDecorators(requireOperator[subscriptionRequest](m.operatorToken)),
				handler.WithErrorHandler[handler.Context, subscriptionRequest](m.errorHandler),
			))
		}
	})

	r.Route("/users/{user_id}", func(r chi.Router) {
		r.Post("/consume", handler.Wrap(m.consumeForUser,
			handler.WithBinders[handler.Context, userRequest](pathBinder),
			handler.WithErrorHandler[handler.Context, userRequest](m.errorHandler),
		))
		r.Get("/plan/preview", handler.Wrap(m.previewPlanChange,
			handler.WithBinders[handler.Context, planRequest](pathBinder, queryBinder),
			handler.WithErrorHandler[handler.Context, planRequest](m.errorHandler),
		))
		r.Post("/plan", handler.Wrap(m.changePlan,
			handler.WithBinders[handler.Context, planRequest](pathBinder, jsonBinder),
			handler.WithErrorHandler[handler.Context, planRequest](m.errorHandler),
		))
		r.Post("/cancel", handler.Wrap(m.cancel,
			handler.WithBinders[handler.Context, userRequest](pathBinder),
			handler.WithErrorHandler[handler.Context, userRequest](m.errorHandler),
		))
	})

	if m.operatorToken != "" {
		r.Get("/history", handler.Wrap(m.history,
			handler.WithBinders[handler.Context, historyRequest](queryBinder),
			handler.WithDecorators(requireOperator[historyRequest](m.operatorToken)),
			handler.WithErrorHandler[handler.Context, historyRequest](m.errorHandler),
		))
	}

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
