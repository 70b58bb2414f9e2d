package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/metrics"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveWebhook("paddle", "processed", time.Second)
		m.ObserveAdmission(true, "")
		m.ObserveOverage("monthly")
		m.ObserveContention()
		m.ObserveVerdict("ok")
		m.ObserveProviderCall("stripe", "change_plan", nil, time.Second)
		m.ObserveNotification("payment_failed", "sent")
	})
}

func TestRecording(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveAdmission(true, "")
	m.ObserveAdmission(false, "limit_reached")
	m.ObserveAdmission(false, "limit_reached")
	m.ObserveProviderCall("paddle", "change_plan", errors.New("boom"), time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AdmissionsTotal.WithLabelValues("allowed", "")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AdmissionsTotal.WithLabelValues("denied", "limit_reached")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("paddle", "change_plan", "error")), 0)
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := metrics.Middleware(m, func(*http.Request) string { return "/teapot" })(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot/1", nil))

	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/teapot", "418")), 0)

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "billing_http_requests_total"))
}
