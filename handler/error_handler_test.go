package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/handler"
	"github.com/dmitrymomot/billingcore/pkg/binder"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/requestid"
)

var (
	errSignature = errors.New("signature mismatch")
	errTimeout   = errors.New("provider timeout")
)

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	valErr := handler.NewValidationError()
	valErr.Add("plan", "is required")

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"mapped client error", fmt.Errorf("verify: %w", errSignature), http.StatusUnauthorized, "invalid_signature", "verify: signature mismatch"},
		{"mapped server error hides cause", errors.Join(errTimeout, errors.New("dial tcp 10.0.0.1")), http.StatusServiceUnavailable, "provider_timeout", "Service Unavailable"},
		{"validation error", valErr, http.StatusUnprocessableEntity, "validation_error", "validation failed: plan is required"},
		{"binder error", fmt.Errorf("%w: bad", binder.ErrInvalidJSON), http.StatusBadRequest, "bad_request", "binder: invalid JSON body: bad"},
		{"http error", handler.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
		{"unknown error", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal_server_error", "An error occurred processing your request"},
	}

	var logs bytes.Buffer
	eh := handler.NewErrorHandler(
		logger.New(logger.WithOutput(&logs)),
		handler.WithErrorMapping(errSignature, handler.NewHTTPError(http.StatusUnauthorized, "invalid_signature")),
		handler.WithErrorMapping(errTimeout, handler.NewHTTPError(http.StatusServiceUnavailable, "provider_timeout")),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/x", nil)
			eh(handler.NewContext(w, r), tt.err)

			assert.Equal(t, tt.status, w.Code)
			var got handler.JSONResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			require.NotNil(t, got.Error)
			assert.Equal(t, tt.code, got.Error.Code)
			assert.Equal(t, tt.message, got.Error.Message)
		})
	}
	assert.Contains(t, logs.String(), "request error")
}

func TestNewErrorHandlerEchoesRequestID(t *testing.T) {
	t.Parallel()
	eh := handler.NewErrorHandler(logger.Nop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(requestid.WithContext(r.Context(), "req-1"))
	eh(handler.NewContext(w, r), handler.ErrNotFound)

	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]any{"request_id": "req-1"}, got.Meta)
}

func TestNewErrorHandlerValidationDetails(t *testing.T) {
	t.Parallel()
	eh := handler.NewErrorHandler(slog.New(slog.DiscardHandler))

	valErr := handler.NewValidationError()
	valErr.Add("user_id", "is required")
	w := httptest.NewRecorder()
	eh(handler.NewContext(w, httptest.NewRequest(http.MethodPost, "/", nil)), fmt.Errorf("bind: %w", valErr))

	var got handler.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string][]string{"user_id": {"is required"}}, got.Error.Details)
}
