package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingcore/pkg/binder"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/requestid"
)

// ErrorInfo contains classified error information
type ErrorInfo struct {
	StatusCode int
	Code       string
	Message    string
	LogLevel   slog.Level
}

type errorMapping struct {
	target error
	as     HTTPError
}

type errorHandlerConfig struct {
	mappings []errorMapping
}

// ErrorHandlerOption configures NewErrorHandler.
type ErrorHandlerOption func(*errorHandlerConfig)

// WithErrorMapping answers errors matching target (errors.Is) with as.
// Mappings are checked in the order given; the first match wins.
func WithErrorMapping(target error, as HTTPError) ErrorHandlerOption {
	return func(c *errorHandlerConfig) {
		c.mappings = append(c.mappings, errorMapping{target: target, as: as})
	}
}

func isClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

func determineLogLevel(statusCode int) slog.Level {
	if isClientError(statusCode) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

var binderErrors = []error{
	binder.ErrMediaType,
	binder.ErrInvalidJSON,
	binder.ErrInvalidQuery,
	binder.ErrInvalidPath,
	binder.ErrNoContentType,
}

// classifyError maps err to a status. Server errors never expose err's text.
func classifyError(err error, mappings []errorMapping) ErrorInfo {
	info := ErrorInfo{
		StatusCode: http.StatusInternalServerError,
		Code:       ErrInternalServerError.Key,
		Message:    "An error occurred processing your request",
	}

	var validationErr ValidationError
	var httpErr HTTPError
	switch {
	case errors.As(err, &validationErr):
		info.StatusCode = http.StatusUnprocessableEntity
		info.Code = "validation_error"
		info.Message = validationErr.Error()
	case isBinderError(err):
		info.StatusCode = http.StatusBadRequest
		info.Code = ErrBadRequest.Key
		info.Message = err.Error()
	default:
		matched := false
		for _, m := range mappings {
			if errors.Is(err, m.target) {
				info.StatusCode, info.Code = m.as.Code, m.as.Key
				matched = true
				break
			}
		}
		if !matched && errors.As(err, &httpErr) {
			info.StatusCode, info.Code = httpErr.Code, httpErr.Key
			matched = true
		}
		if matched && isClientError(info.StatusCode) {
			info.Message = err.Error()
		} else if matched {
			info.Message = http.StatusText(info.StatusCode)
		}
	}

	info.LogLevel = determineLogLevel(info.StatusCode)
	return info
}

func isBinderError(err error) bool {
	for _, target := range binderErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logError(log *slog.Logger, ctx Context, err error, info ErrorInfo) {
	r := ctx.Request()
	log.LogAttrs(r.Context(), info.LogLevel, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", info.StatusCode),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("error_handler"),
	)
}

// NewErrorHandler creates the JSON error handler used by every route.
// Validation errors answer 422 with per-field details, binder errors 400,
// mapped domain errors their configured status, and everything else 500.
// The request ID is echoed in the response meta.
func NewErrorHandler(log *slog.Logger, opts ...ErrorHandlerOption) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	cfg := &errorHandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx Context, err error) {
		info := classifyError(err, cfg.mappings)
		logError(log, ctx, err, info)

		detail := &ErrorDetail{Code: info.Code, Message: info.Message}
		var validationErr ValidationError
		if errors.As(err, &validationErr) && len(validationErr) > 0 {
			detail.Details = map[string][]string(validationErr)
		}

		jsonOpts := []JSONOption{WithJSONStatus(info.StatusCode)}
		if id := requestid.FromContext(ctx.Request().Context()); id != "" {
			jsonOpts = append(jsonOpts, WithJSONMeta(map[string]any{"request_id": id}))
		}
		if renderErr := JSONError(detail, jsonOpts...).Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.Error("failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
