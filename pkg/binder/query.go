package binder

import "net/http"

// Query binds URL query parameters to fields tagged `query:"name"`. Fields
// without a tag match their lowercased name; `query:"-"` skips a field.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		return bindValues(v, "query", r.URL.Query(), ErrInvalidQuery)
	}
}
