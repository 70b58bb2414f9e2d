package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingcore/pkg/binder"
)

// HandlerFunc handles a bound request value R and returns the Response to
// render.
//
//	func (m *Module) balance(ctx handler.Context, req subscriptionRequest) handler.Response {
//		b, err := m.svc.Balance(ctx, req.ID)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(b)
//	}
type HandlerFunc[C Context, R any] func(ctx C, req R) Response

// Response writes status, headers and body. A non-nil error from Render is
// passed to the ErrorHandler.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind fills v from the request. Returning binder.ErrBinderNotApplicable
// means the request carries nothing for this binder.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for a bind or render failure.
type ErrorHandler[C Context] func(ctx C, err error)

// Decorator wraps a HandlerFunc. The first decorator given to
// WithDecorators is the outermost.
type Decorator[C Context, R any] func(HandlerFunc[C, R]) HandlerFunc[C, R]

// WrapOption configures Wrap.
type WrapOption[C Context, R any] func(*wrapper[C, R])

type wrapper[C Context, R any] struct {
	handle     HandlerFunc[C, R]
	binders    []Bind
	onError    ErrorHandler[C]
	newContext func(http.ResponseWriter, *http.Request) C
	decorators []Decorator[C, R]
}

// WithBinders appends binders. They run in the order given, each filling
// only the fields tagged for it.
//
//	handler.WithBinders[handler.Context, planRequest](
//		binder.Path(chi.URLParam),
//		binder.JSON(),
//	)
func WithBinders[C Context, R any](binders ...Bind) WrapOption[C, R] {
	return func(w *wrapper[C, R]) {
		for _, b := range binders {
			if b != nil {
				w.binders = append(w.binders, b)
			}
		}
	}
}

// WithErrorHandler replaces the default JSON error rendering.
func WithErrorHandler[C Context, R any](h ErrorHandler[C]) WrapOption[C, R] {
	return func(w *wrapper[C, R]) {
		if h != nil {
			w.onError = h
		}
	}
}

// WithContextFactory builds C for each request. Required when C is not
// satisfied by the value NewContext returns.
func WithContextFactory[C Context, R any](f func(http.ResponseWriter, *http.Request) C) WrapOption[C, R] {
	return func(w *wrapper[C, R]) {
		if f != nil {
			w.newContext = f
		}
	}
}

// WithDecorators appends decorators around the handler.
func WithDecorators[C Context, R any](decorators ...Decorator[C, R]) WrapOption[C, R] {
	return func(w *wrapper[C, R]) {
		w.decorators = append(w.decorators, decorators...)
	}
}

// Wrap adapts a typed handler to http.HandlerFunc.
//
//	r.Get("/subscriptions/{id}/balance", handler.Wrap(m.balance,
//		handler.WithBinders[handler.Context, subscriptionRequest](binder.Path(chi.URLParam)),
//		handler.WithErrorHandler[handler.Context, subscriptionRequest](errorHandler),
//	))
func Wrap[C Context, R any](h HandlerFunc[C, R], opts ...WrapOption[C, R]) http.HandlerFunc {
	w := &wrapper[C, R]{
		handle:     h,
		onError:    renderError[C],
		newContext: defaultContext[C],
	}
	for _, opt := range opts {
		opt(w)
	}
	for i := len(w.decorators) - 1; i >= 0; i-- {
		w.handle = w.decorators[i](w.handle)
	}
	return w.serve
}

func (w *wrapper[C, R]) serve(rw http.ResponseWriter, r *http.Request) {
	ctx := w.newContext(rw, r)

	var req R
	if err := w.bind(r, &req); err != nil {
		w.onError(ctx, err)
		return
	}

	resp := w.handle(ctx, req)
	if resp == nil {
		w.onError(ctx, ErrNilResponse)
		return
	}
	if err := resp.Render(rw, r); err != nil {
		w.onError(ctx, err)
	}
}

func (w *wrapper[C, R]) bind(r *http.Request, req *R) error {
	for _, b := range w.binders {
		err := b(r, req)
		if err == nil || errors.Is(err, binder.ErrBinderNotApplicable) {
			continue
		}
		return err
	}
	return nil
}

func defaultContext[C Context](w http.ResponseWriter, r *http.Request) C {
	c, ok := NewContext(w, r).(C)
	if !ok {
		panic("handler: custom context type requires WithContextFactory")
	}
	return c
}

func renderError[C Context](ctx C, err error) {
	if rerr := JSONError(err).Render(ctx.ResponseWriter(), ctx.Request()); rerr != nil {
		http.Error(ctx.ResponseWriter(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
