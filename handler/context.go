package handler

import (
	"context"
	"net/http"
)

// Context is the request context handed to typed handlers. It behaves as
// the request's context.Context and exposes the writer and request.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type requestContext struct {
	context.Context
	w http.ResponseWriter
	r *http.Request
}

// NewContext returns a Context bound to r.Context(). Deriving a new request
// with WithContext and calling NewContext again is how decorators attach
// values.
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return requestContext{Context: r.Context(), w: w, r: r}
}

func (c requestContext) Request() *http.Request              { return c.r }
func (c requestContext) ResponseWriter() http.ResponseWriter { return c.w }

// ContextKey is a comparable, collision-free key for context values.
type ContextKey struct{ name string }

// NewContextKey returns a key that is only equal to itself.
//
//	var operatorKey = handler.NewContextKey("operator")
func NewContextKey(name string) *ContextKey { return &ContextKey{name: name} }

func (k *ContextKey) String() string { return k.name }

// ContextValue returns the value stored under key, or the zero T when the
// key is absent or holds another type.
func ContextValue[T any](ctx context.Context, key any) T {
	v, _ := ContextValueOK[T](ctx, key)
	return v
}

// ContextValueOK is ContextValue with a presence flag.
func ContextValueOK[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}
