package binder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
)

// MaxJSONBody caps the bytes JSON reads from a body.
const MaxJSONBody = 1 << 20

// JSON decodes an application/json body strictly: unknown fields and
// trailing data are errors. String values are trimmed. A missing or blank
// body is ErrBinderNotApplicable.
//
//	handler.WithBinders[handler.Context, planRequest](binder.Path(chi.URLParam), binder.JSON())
func JSON() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			return ErrBinderNotApplicable
		}
		if err := checkMediaType(r.Header.Get("Content-Type")); err != nil {
			return err
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxJSONBody+1))
		switch {
		case err != nil:
			return fmt.Errorf("%w: read: %v", ErrInvalidJSON, err)
		case len(body) > MaxJSONBody:
			return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidJSON, MaxJSONBody)
		case len(bytes.TrimSpace(body)) == 0:
			return ErrBinderNotApplicable
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		if dec.More() {
			return fmt.Errorf("%w: trailing data after object", ErrInvalidJSON)
		}

		trimStrings(reflect.ValueOf(v))
		return nil
	}
}

func checkMediaType(header string) error {
	if header == "" {
		return ErrNoContentType
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt != "application/json" {
		return fmt.Errorf("%w: %q", ErrMediaType, header)
	}
	return nil
}

func trimStrings(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			trimStrings(rv.Elem())
		}
	case reflect.Struct:
		for i := range rv.NumField() {
			trimStrings(rv.Field(i))
		}
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			trimStrings(rv.Index(i))
		}
	case reflect.String:
		if rv.CanSet() {
			rv.SetString(strings.TrimSpace(rv.String()))
		}
	}
}
