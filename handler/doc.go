// Package handler provides type-safe JSON HTTP handlers.
//
// A handler is a generic function that receives a bound request struct and
// returns a Response:
//
//	type previewRequest struct {
//		UserID string `path:"user_id"`
//		Plan   string `query:"plan"`
//	}
//
//	func preview(ctx handler.Context, req previewRequest) handler.Response {
//		q, err := svc.PreviewPlanChange(ctx, req.UserID, subscription.Plan(req.Plan))
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(q)
//	}
//
//	r.Get("/users/{user_id}/plan/preview", handler.Wrap(preview,
//		handler.WithBinders[handler.Context, previewRequest](binder.Path(chi.URLParam), binder.Query()),
//		handler.WithErrorHandler[handler.Context, previewRequest](errorHandler),
//	))
//
// # Responses
//
//	handler.JSON(data)                              // 200 with {"data": ...}
//	handler.JSON(data, handler.WithJSONStatus(202)) // custom status
//	handler.JSONError(err)                          // {"error": {...}}
//	handler.Error(err)                              // defers to the ErrorHandler
//	handler.Empty()                                 // 204
//
// JSONError picks the status from the error: ValidationError answers 422
// with per-field details, HTTPError its own code, anything else 500.
//
// # Errors
//
// NewErrorHandler builds the error handler used for binder, render and
// handler errors. Domain sentinels are mapped to statuses with
// WithErrorMapping; the first matching mapping wins. 5xx responses never
// carry the underlying error text, and every error is logged with the
// request ID.
//
// # Decorators
//
// Decorators wrap a HandlerFunc for cross-cutting concerns such as operator
// authentication. The first decorator passed to WithDecorators is the
// outermost.
package handler
