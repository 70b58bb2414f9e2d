package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/abuse"
	"github.com/dmitrymomot/billingcore/pkg/archive"
	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/idempotency"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/notifications"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
)

// Transactor runs fn in a transaction carried by ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier hands notifications off without blocking.
type Notifier interface {
	Dispatch(n notifications.Notification) bool
}

// Dependencies are the collaborators every Service needs.
type Dependencies struct {
	Registry *subscription.Registry
	Ledger   *idempotency.Ledger
	Machine  *subscription.Machine
	Meter    *usage.Meter
	Prorator *proration.Calculator
	Guard    *abuse.Guard
	Store    subscription.Store
	Tx       Transactor
	Audit    *audit.Logger
	History  audit.Reader
	Catalog  *subscription.Catalog
}

// Service orchestrates webhooks, consumption and plan changes.
type Service struct {
	registry *subscription.Registry
	ledger   *idempotency.Ledger
	machine  *subscription.Machine
	meter    *usage.Meter
	prorator *proration.Calculator
	guard    *abuse.Guard
	store    subscription.Store
	tx       Transactor
	audit    *audit.Logger
	history  audit.Reader
	catalog  *subscription.Catalog

	notifier        Notifier
	archive         archive.Archive
	changers        map[subscription.Provider]subscription.PlanChanger
	metrics         *metrics.Metrics
	log             *slog.Logger
	now             func() time.Time
	providerTimeout time.Duration
	archiveTimeout  time.Duration
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithArchive stores raw webhook bodies before they are applied.
func WithArchive(a archive.Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

func WithPlanChangers(changers ...subscription.PlanChanger) Option {
	return func(s *Service) {
		for _, c := range changers {
			if c != nil {
				s.changers[c.Provider()] = c
			}
		}
	}
}

// WithProviderTimeout bounds each provider API call. Default 10s.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.providerTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type discard struct{}

func (discard) Dispatch(notifications.Notification) bool { return true }

// New panics when a dependency is missing.
func New(deps Dependencies, opts ...Option) *Service {
	switch {
	case deps.Registry == nil:
		panic("billing: registry cannot be nil")
	case deps.Ledger == nil:
		panic("billing: ledger cannot be nil")
	case deps.Machine == nil:
		panic("billing: machine cannot be nil")
	case deps.Meter == nil:
		panic("billing: meter cannot be nil")
	case deps.Prorator == nil:
		panic("billing: proration calculator cannot be nil")
	case deps.Guard == nil:
		panic("billing: abuse guard cannot be nil")
	case deps.Store == nil:
		panic("billing: store cannot be nil")
	case deps.Tx == nil:
		panic("billing: transactor cannot be nil")
	case deps.Audit == nil:
		panic("billing: audit logger cannot be nil")
	case deps.History == nil:
		panic("billing: history reader cannot be nil")
	case deps.Catalog == nil:
		panic("billing: catalog cannot be nil")
	}

	s := &Service{
		registry:        deps.Registry,
		ledger:          deps.Ledger,
		machine:         deps.Machine,
		meter:           deps.Meter,
		prorator:        deps.Prorator,
		guard:           deps.Guard,
		store:           deps.Store,
		tx:              deps.Tx,
		audit:           deps.Audit,
		history:         deps.History,
		catalog:         deps.Catalog,
		notifier:        discard{},
		archive:         archive.Nop{},
		changers:        make(map[subscription.Provider]subscription.PlanChanger),
		log:             logger.Nop(),
		now:             time.Now,
		providerTimeout: 10 * time.Second,
		archiveTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("billing"))
	return s
}

// notify dispatches after commit. A full queue only loses the notification.
func (s *Service) notify(ctx context.Context, notes ...notifications.Notification) {
	for _, n := range notes {
		if !s.notifier.Dispatch(n) {
			s.log.WarnContext(ctx, "notification dropped",
				logger.UserID(n.UserID),
				slog.String("kind", string(n.Kind)),
			)
		}
	}
}
