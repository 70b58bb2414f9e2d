package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Option adjusts the logger built by New.
type Option func(*settings)

type settings struct {
	level      slog.Level
	format     Format
	out        io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithFormat panics on anything but FormatJSON and FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// WithAttr adds attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// WithContextExtractors adds attributes read from the record's context.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		s.extractors = append(s.extractors, slices.DeleteFunc(extractors, func(e ContextExtractor) bool { return e == nil })...)
	}
}

// WithContextValue logs ctx.Value(key) as name when it is set.
func WithContextValue(name string, key any) Option {
	if name == "" || key == nil {
		return func(*settings) {}
	}
	return WithContextExtractors(func(ctx context.Context) (slog.Attr, bool) {
		v := ctx.Value(key)
		return slog.Any(name, v), v != nil
	})
}

// WithEnvironment picks JSON at info level for production and staging and
// text at debug level elsewhere. Non-empty env and service are attached to
// every record.
func WithEnvironment(env, service string) Option {
	return func(s *settings) {
		s.level, s.format = slog.LevelDebug, FormatText
		switch env {
		case "production", "prod", "staging", "stage":
			s.level, s.format = slog.LevelInfo, FormatJSON
		}
		if service != "" {
			s.attrs = append(s.attrs, slog.String("service", service))
		}
		if env != "" {
			s.attrs = append(s.attrs, slog.String("env", env))
		}
	}
}

// New builds a slog.Logger. Defaults: JSON, info level, stdout.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, format: FormatJSON, out: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	ho := &slog.HandlerOptions{Level: s.level}
	var h slog.Handler = slog.NewJSONHandler(s.out, ho)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.out, ho)
	}
	if len(s.attrs) > 0 {
		h = h.WithAttrs(s.attrs)
	}
	if len(s.extractors) > 0 {
		h = &contextHandler{Handler: h, extractors: s.extractors}
	}
	return slog.New(h)
}

// Nop discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
