package binder

import "errors"

var (
	ErrInvalidJSON   = errors.New("binder: invalid JSON body")
	ErrInvalidQuery  = errors.New("binder: invalid query parameter")
	ErrInvalidPath   = errors.New("binder: invalid path parameter")
	ErrNoContentType = errors.New("binder: missing Content-Type")
	ErrMediaType     = errors.New("binder: unsupported media type")

	// ErrBinderNotApplicable means the request has nothing for this binder,
	// e.g. JSON without a body. handler.Wrap skips it.
	ErrBinderNotApplicable = errors.New("binder: not applicable")
)
