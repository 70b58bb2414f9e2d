package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/requestid"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, header http.Header) (ctxID, respID string) {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates an id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := serve(t, requestid.Middleware(), nil)
		assert.NotEmpty(t, ctxID)
		assert.Equal(t, ctxID, respID)
	})

	t.Run("reuses a valid inbound id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := serve(t, requestid.Middleware(), http.Header{requestid.Header: {"req-123"}})
		assert.Equal(t, "req-123", ctxID)
		assert.Equal(t, "req-123", respID)
	})

	t.Run("replaces invalid ids", func(t *testing.T) {
		t.Parallel()
		mw := requestid.Middleware(requestid.WithGenerator(func() string { return "generated" }))
		for _, bad := range []string{"has space", "a/b", "<script>", strings.Repeat("x", 129)} {
			ctxID, _ := serve(t, mw, http.Header{requestid.Header: {bad}})
			assert.Equal(t, "generated", ctxID, bad)
		}
	})

	t.Run("falls back to extra headers in order", func(t *testing.T) {
		t.Parallel()
		mw := requestid.Middleware(requestid.WithHeaders("Paddle-Notification-Id", "Stripe-Event-Id"))
		ctxID, _ := serve(t, mw, http.Header{
			"Stripe-Event-Id":        {"evt_2"},
			"Paddle-Notification-Id": {"ntf_1"},
		})
		assert.Equal(t, "ntf_1", ctxID)

		ctxID, _ = serve(t, mw, http.Header{
			requestid.Header:  {"primary"},
			"Stripe-Event-Id": {"evt_2"},
		})
		assert.Equal(t, "primary", ctxID)
	})

	t.Run("header names are case insensitive", func(t *testing.T) {
		t.Parallel()
		mw := requestid.Middleware(requestid.WithHeaders("stripe-event-id"))
		ctxID, _ := serve(t, mw, http.Header{"STRIPE-EVENT-ID": {"evt_9"}})
		assert.Equal(t, "evt_9", ctxID)

		ctxID, respID := serve(t, requestid.Middleware(), http.Header{"x-request-id": {"req-7"}})
		assert.Equal(t, "req-7", ctxID)
		assert.Equal(t, "req-7", respID)
	})
}

func TestContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Empty(t, requestid.FromContext(nil)) //nolint:staticcheck

	ctx := requestid.WithContext(context.Background(), "abc")
	assert.Equal(t, "abc", requestid.FromContext(ctx))

	attr, ok := requestid.LoggerExtractor()(ctx)
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.String())

	_, ok = requestid.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}
