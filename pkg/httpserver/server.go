package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/dmitrymomot/billingcore/pkg/logger"
)

// Server runs one http.Server until its context ends.
type Server struct {
	cfg     Config
	log     *slog.Logger
	onStart []func(addr string)
	onStop  []func()

	mu       sync.Mutex
	srv      *http.Server
	stopOnce sync.Once
	stopErr  error
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// OnStart registers fn to run once the listener is bound. addr is the bound
// address, which differs from Config.Addr when the port is 0.
func OnStart(fn func(addr string)) Option {
	return func(s *Server) {
		if fn != nil {
			s.onStart = append(s.onStart, fn)
		}
	}
}

// OnStop registers fn to run after a graceful shutdown.
func OnStop(fn func()) Option {
	return func(s *Server) {
		if fn != nil {
			s.onStop = append(s.onStop, fn)
		}
	}
}

func New(cfg Config, opts ...Option) *Server {
	s := &Server{cfg: cfg.withDefaults(), log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("http"))
	return s
}

// Run serves handler and blocks until ctx is cancelled or Shutdown is
// called. A server runs once; signal handling belongs to the caller.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv = srv
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	addr := ln.Addr().String()
	for _, fn := range s.onStart {
		fn(addr)
	}
	s.log.InfoContext(ctx, "http server listening", slog.String("addr", addr))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
			s.log.ErrorContext(ctx, "http server shutdown failed", logger.Error(err))
		}
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	s.log.InfoContext(ctx, "http server stopped", slog.String("addr", addr))
	return nil
}

// Shutdown drains in-flight requests for at most Config.ShutdownTimeout.
// Repeated calls return the first result; calls before Run are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.stopErr = fmt.Errorf("%w: %w", ErrShutdown, err)
		}
		for _, fn := range s.onStop {
			fn()
		}
	})
	return s.stopErr
}
