// Package metrics defines the Prometheus collectors of the billing service.
// All recording helpers are safe to call on a nil *Metrics, which lets
// components take metrics as an optional dependency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Webhooks
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec

	// Usage meter
	AdmissionsTotal *prometheus.CounterVec
	OverageTotal    *prometheus.CounterVec
	ContentionTotal prometheus.Counter

	// Abuse guard
	VelocityVerdictsTotal *prometheus.CounterVec

	// Provider API calls
	ProviderCallsTotal   *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Notifications
	NotificationsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		WebhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhooks_total",
				Help: "Webhook deliveries by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		WebhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_webhook_duration_seconds",
				Help:    "Webhook processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_usage_admissions_total",
				Help: "Usage admission decisions",
			},
			[]string{"result", "reason"},
		),
		OverageTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_usage_overage_total",
				Help: "Rows observed with usage above their limit",
			},
			[]string{"plan"},
		),
		ContentionTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_usage_contention_retries_total",
				Help: "Admission attempts retried after a concurrent update",
			},
		),
		VelocityVerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_abuse_verdicts_total",
				Help: "Abuse guard verdicts",
			},
			[]string{"verdict"},
		),
		ProviderCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_provider_calls_total",
				Help: "Outbound provider API calls",
			},
			[]string{"provider", "operation", "status"},
		),
		ProviderCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_provider_call_duration_seconds",
				Help:    "Outbound provider API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_notifications_total",
				Help: "Notification deliveries by kind and status",
			},
			[]string{"kind", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhooksTotal,
		m.WebhookDuration,
		m.AdmissionsTotal,
		m.OverageTotal,
		m.ContentionTotal,
		m.VelocityVerdictsTotal,
		m.ProviderCallsTotal,
		m.ProviderCallDuration,
		m.NotificationsTotal,
	)
	return m
}

func (m *Metrics) ObserveWebhook(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(provider, outcome).Inc()
	m.WebhookDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveAdmission(allowed bool, reason string) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AdmissionsTotal.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) ObserveOverage(plan string) {
	if m == nil {
		return
	}
	m.OverageTotal.WithLabelValues(plan).Inc()
}

func (m *Metrics) ObserveContention() {
	if m == nil {
		return
	}
	m.ContentionTotal.Inc()
}

func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.VelocityVerdictsTotal.WithLabelValues(verdict).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderCallsTotal.WithLabelValues(provider, operation, status).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func (m *Metrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency. route names the handler
// pattern so that path parameters do not explode label cardinality.
func Middleware(m *Metrics, route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			name := r.URL.Path
			if route != nil {
				name = route(r)
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
