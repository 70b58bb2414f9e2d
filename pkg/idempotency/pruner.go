package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Pruner runs Ledger.Prune on a cron schedule.
type Pruner struct {
	ledger    *Ledger
	retention time.Duration
	timeout   time.Duration
	cron      *cron.Cron
	log       *slog.Logger
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

func WithPrunerLogger(l *slog.Logger) PrunerOption {
	return func(p *Pruner) {
		if l != nil {
			p.log = l
		}
	}
}

// WithPruneTimeout bounds a single prune run. Default 1 minute.
func WithPruneTimeout(d time.Duration) PrunerOption {
	return func(p *Pruner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPruner schedules pruning with a standard five-field cron spec.
func NewPruner(ledger *Ledger, schedule string, retention time.Duration, opts ...PrunerOption) (*Pruner, error) {
	if ledger == nil {
		panic("idempotency: ledger cannot be nil")
	}
	p := &Pruner{
		ledger:    ledger,
		retention: retention,
		timeout:   time.Minute,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(logger.Component("idempotency"))

	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, errors.Join(ErrInvalidSpec, err)
	}
	return p, nil
}

// Start launches the scheduler in its own goroutine.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop prevents new runs and waits for a running one or ctx.
func (p *Pruner) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	start := time.Now()
	n, err := p.ledger.Prune(ctx, p.retention)
	if err != nil {
		p.log.ErrorContext(ctx, "prune idempotency markers", logger.Error(err))
		return
	}
	p.log.InfoContext(ctx, "pruned idempotency markers",
		logger.Int64("deleted", n),
		logger.Duration(time.Since(start)),
	)
}
