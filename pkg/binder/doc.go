// Package binder decodes HTTP request data into typed request structs.
//
// Binders are plain functions with the signature
//
//	func(r *http.Request, v any) error
//
// and are passed to handler.Wrap through handler.WithBinders. Each binder
// reads only its own source:
//
//   - JSON(): the request body, strict decoding, 1MB limit
//   - Query(): URL query parameters, `query:"name"` tags
//   - Path(extractor): router path parameters, `path:"name"` tags
//
// Example:
//
//	type consumeRequest struct {
//	    ID     uuid.UUID `path:"id"`
//	    DryRun bool      `query:"dry_run"`
//	}
//
//	r.Post("/subscriptions/{id}/consume", handler.Wrap(consume,
//	    handler.WithBinders[handler.Context, consumeRequest](
//	        binder.Path(chi.URLParam),
//	        binder.Query(),
//	    ),
//	))
//
// Query and path values are converted to strings, signed and unsigned
// integers, floats, booleans, slices of those, pointers, and any type
// implementing encoding.TextUnmarshaler (uuid.UUID among them).
//
// Binding failures wrap one of the package errors so the error handler can
// answer with 400 Bad Request.
package binder
