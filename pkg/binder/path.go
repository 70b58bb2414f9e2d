package binder

import (
	"fmt"
	"net/http"
	"reflect"
)

// Path binds router path parameters to fields tagged `path:"name"`. The
// extractor reads one parameter by name; chi.URLParam fits directly.
// Untagged fields are left alone.
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a pointer to struct", ErrInvalidPath)
		}

		rt := rv.Elem().Type()
		values := make(map[string][]string)
		for i := range rt.NumField() {
			field := rt.Field(i)
			if _, ok := field.Tag.Lookup("path"); !ok {
				continue
			}
			name, ok := fieldName(field, "path")
			if !ok {
				continue
			}
			if val := extractor(r, name); val != "" {
				values[name] = []string{val}
			}
		}
		if len(values) == 0 {
			return nil
		}
		return bindValues(v, "path", values, ErrInvalidPath)
	}
}
