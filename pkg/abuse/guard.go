package abuse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
)

// Verdict is the guard's decision for a window count.
type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictAlert   Verdict = "alert"
	VerdictSuspend Verdict = "suspend"
)

// Thresholds configure the guard.
type Thresholds struct {
	Alert   int64         `env:"ABUSE_ALERT_THRESHOLD" envDefault:"200"`
	Suspend int64         `env:"ABUSE_SUSPEND_THRESHOLD" envDefault:"500"`
	Window  time.Duration `env:"ABUSE_WINDOW" envDefault:"24h"`
}

// Validate requires 0 < alert < suspend and a positive window.
func (t Thresholds) Validate() error {
	if t.Alert <= 0 || t.Suspend <= t.Alert {
		return fmt.Errorf("%w: alert=%d suspend=%d", ErrInvalidThresholds, t.Alert, t.Suspend)
	}
	if t.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidThresholds)
	}
	return nil
}

// DefaultThresholds returns alert 200 and suspend 500 per 24 hours.
func DefaultThresholds() Thresholds {
	return Thresholds{Alert: 200, Suspend: 500, Window: 24 * time.Hour}
}

// VelocityStore keeps per-user event timestamps.
type VelocityStore interface {
	// Record adds an event at at and returns the count in (at-window, at].
	Record(ctx context.Context, userID string, at time.Time, window time.Duration) (int64, error)
	Count(ctx context.Context, userID string, at time.Time, window time.Duration) (int64, error)
	Reset(ctx context.Context, userID string) error
}

// Observation is the result of recording one event.
type Observation struct {
	Count   int64   `json:"count"`
	Verdict Verdict `json:"verdict"`
}

// Guard applies thresholds to the velocity window.
type Guard struct {
	store      VelocityStore
	thresholds Thresholds
	log        *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGuard(store VelocityStore, thresholds Thresholds, opts ...Option) (*Guard, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		store:      store,
		thresholds: thresholds,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("abuse"))
	return g, nil
}

// CheckVelocity classifies a window count. It has no side effects besides
// logging an alert.
func (g *Guard) CheckVelocity(ctx context.Context, userID string, windowEvents int64) Verdict {
	switch {
	case windowEvents >= g.thresholds.Suspend:
		g.log.WarnContext(ctx, "consumption velocity above suspend threshold",
			logger.UserID(userID),
			logger.Int64("window_events", windowEvents),
			logger.Int64("threshold", g.thresholds.Suspend),
		)
		return VerdictSuspend
	case windowEvents >= g.thresholds.Alert:
		g.log.WarnContext(ctx, "consumption velocity above alert threshold",
			logger.UserID(userID),
			logger.Int64("window_events", windowEvents),
			logger.Int64("threshold", g.thresholds.Alert),
		)
		return VerdictAlert
	default:
		return VerdictOK
	}
}

// Observe records one consumption event and returns the verdict for the
// updated window.
func (g *Guard) Observe(ctx context.Context, userID string) (Observation, error) {
	if userID == "" {
		return Observation{}, ErrUserRequired
	}
	n, err := g.store.Record(ctx, userID, g.now().UTC(), g.thresholds.Window)
	if err != nil {
		return Observation{}, fmt.Errorf("record velocity: %w", err)
	}
	v := g.CheckVelocity(ctx, userID, n)
	g.metrics.ObserveVerdict(string(v))
	return Observation{Count: n, Verdict: v}, nil
}

// Peek returns the verdict for the current window without recording.
func (g *Guard) Peek(ctx context.Context, userID string) (Observation, error) {
	if userID == "" {
		return Observation{}, ErrUserRequired
	}
	n, err := g.store.Count(ctx, userID, g.now().UTC(), g.thresholds.Window)
	if err != nil {
		return Observation{}, fmt.Errorf("count velocity: %w", err)
	}
	return Observation{Count: n, Verdict: g.CheckVelocity(ctx, userID, n)}, nil
}

// Clear forgets the user's window, typically after an operator lifts a
// suspension.
func (g *Guard) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	return g.store.Reset(ctx, userID)
}
