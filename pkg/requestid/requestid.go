// Package requestid correlates log records of one HTTP request.
//
// Middleware reuses a well-formed X-Request-ID header (or any header set
// with WithHeaders, e.g. a provider's delivery id) and otherwise generates a
// UUID. The id is stored in the request context, echoed in the response and
// picked up by the logger through LoggerExtractor.
package requestid

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const Header = "X-Request-ID"

const maxLength = 128

var validID = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

type contextKey struct{}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// LoggerExtractor adds request_id to records logged with a request context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}

type config struct {
	headers  []string
	generate func() string
}

type Option func(*config)

// WithHeaders adds inbound headers consulted after X-Request-ID, in order.
func WithHeaders(names ...string) Option {
	return func(c *config) { c.headers = append(c.headers, names...) }
}

func WithGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.generate = fn
		}
	}
}

// Middleware returns the request id middleware.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		headers:  []string{Header},
		generate: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			for _, h := range cfg.headers {
				if v := r.Header.Get(h); valid(v) {
					id = v
					break
				}
			}
			if id == "" {
				id = cfg.generate()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

func valid(id string) bool {
	return id != "" && len(id) <= maxLength && validID.MatchString(id)
}
