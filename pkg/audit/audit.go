package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Reader lists stored events, newest first.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// Logger records audit events.
type Logger struct {
	storage            Storage
	requestIDExtractor func(context.Context) (string, bool)
	now                func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithRequestIDExtractor copies the request id from context into every event.
func WithRequestIDExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *Logger) { l.requestIDExtractor = fn }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates an audit logger. Panics when storage is nil.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records an action attributed to source.
func (l *Logger) Log(ctx context.Context, action string, source Source, opts ...EventOption) error {
	return l.store(ctx, action, source, nil, opts)
}

// LogError records a failed action.
func (l *Logger) LogError(ctx context.Context, action string, source Source, err error, opts ...EventOption) error {
	return l.store(ctx, action, source, err, opts)
}

func (l *Logger) store(ctx context.Context, action string, source Source, cause error, opts []EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Source:    source,
		Result:    ResultSuccess,
		CreatedAt: l.now().UTC(),
	}
	if cause != nil {
		event.Result = ResultFailure
		event.Error = cause.Error()
	}
	if l.requestIDExtractor != nil {
		if id, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = id
		}
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	if err := l.storage.Store(ctx, event); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}
