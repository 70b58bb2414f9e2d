package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// JSONResponse is the envelope of every JSON body: data on success, error
// otherwise, and optional meta.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// JSON wraps v in the envelope with status 200. A JSONResponse is sent as
// is; an error or *ErrorDetail is sent like JSONError.
func JSON(v any, opts ...JSONOption) Response {
	switch val := v.(type) {
	case JSONResponse:
		return build(http.StatusOK, val, opts)
	case *ErrorDetail, error:
		return JSONError(val, opts...)
	}
	return build(http.StatusOK, JSONResponse{Data: v}, opts)
}

// JSONError sends err in the error envelope. HTTPError keeps its status and
// key, ValidationError is a 422 with per-field details, anything else a 500.
func JSONError(err any, opts ...JSONOption) Response {
	status := http.StatusInternalServerError
	var detail *ErrorDetail
	switch e := err.(type) {
	case *ErrorDetail:
		detail = e
	case error:
		detail, status = describe(e)
	}
	return build(status, JSONResponse{Error: detail}, opts)
}

func build(status int, body JSONResponse, opts []JSONOption) *jsonResponse {
	r := &jsonResponse{status: status, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func describe(err error) (*ErrorDetail, int) {
	var (
		verr    ValidationError
		httpErr HTTPError
	)
	switch {
	case errors.As(err, &verr):
		d := &ErrorDetail{Code: "validation_error", Message: verr.Error()}
		if len(verr) > 0 {
			d.Details = maps.Clone(map[string][]string(verr))
		}
		return d, http.StatusUnprocessableEntity
	case errors.As(err, &httpErr):
		return &ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}, httpErr.Code
	}
	return &ErrorDetail{Code: "internal_error", Message: err.Error()}, http.StatusInternalServerError
}
