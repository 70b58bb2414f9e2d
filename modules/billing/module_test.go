package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/httpserver"
	"github.com/dmitrymomot/billingcore/pkg/metrics"
	"github.com/dmitrymomot/billingcore/pkg/proration"
	"github.com/dmitrymomot/billingcore/pkg/requestid"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/usage"
	billing "github.com/dmitrymomot/billingcore/modules/billing"
	billingsvc "github.com/dmitrymomot/billingcore/svc/billing"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) HandleWebhook(ctx context.Context, provider string, body []byte, header http.Header) (billingsvc.WebhookResult, error) {
	args := m.Called(provider, string(body))
	return args.Get(0).(billingsvc.WebhookResult), args.Error(1)
}

func (m *mockService) Consume(ctx context.Context, id uuid.UUID) (billingsvc.Consumption, error) {
	args := m.Called(id)
	return args.Get(0).(billingsvc.Consumption), args.Error(1)
}

func (m *mockService) ConsumeForUser(ctx context.Context, userID string) (billingsvc.Consumption, error) {
	args := m.Called(userID)
	return args.Get(0).(billingsvc.Consumption), args.Error(1)
}

func (m *mockService) Balance(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockService) PreviewPlanChange(ctx context.Context, userID string, plan subscription.Plan) (proration.Quote, error) {
	args := m.Called(userID, plan)
	return args.Get(0).(proration.Quote), args.Error(1)
}

func (m *mockService) ChangePlan(ctx context.Context, userID string, plan subscription.Plan) (*billingsvc.PlanChange, error) {
	args := m.Called(userID, plan)
	change, _ := args.Get(0).(*billingsvc.PlanChange)
	return change, args.Error(1)
}

func (m *mockService) CancelAtPeriodEnd(ctx context.Context, userID string) (*subscription.Subscription, error) {
	args := m.Called(userID)
	sub, _ := args.Get(0).(*subscription.Subscription)
	return sub, args.Error(1)
}

func (m *mockService) ClearSuspension(ctx context.Context, id uuid.UUID, operator string) ([]*subscription.Subscription, error) {
	args := m.Called(id, operator)
	subs, _ := args.Get(0).([]*subscription.Subscription)
	return subs, args.Error(1)
}

func (m *mockService) History(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	args := m.Called(f)
	events, _ := args.Get(0).([]audit.Event)
	return events, args.Error(1)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func newModule(t *testing.T, opts ...billing.Option) (*mockService, http.Handler) {
	t.Helper()
	svc := &mockService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })
	return svc, billing.New(svc, opts...).Handler()
}

func TestNewPanicsWithoutService(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { billing.New(nil) })
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges processed events", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("HandleWebhook", "stripe", `{"id":"evt_1"}`).Return(billingsvc.WebhookResult{
			Outcome:  billingsvc.OutcomeProcessed,
			Provider: "stripe",
			EventID:  "evt_1",
		}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res billingsvc.WebhookResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, billingsvc.OutcomeProcessed, res.Outcome)
		assert.Equal(t, "evt_1", res.EventID)
		assert.NotEmpty(t, rec.Header().Get(requestid.Header))
	})

	t.Run("maps normalizer errors", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{errors.Join(subscription.ErrInvalidSignature, errors.New("bad mac")), http.StatusUnauthorized, "invalid_signature"},
			{subscription.ErrMalformedPayload, http.StatusBadRequest, "malformed_payload"},
			{subscription.ErrUnknownProvider, http.StatusNotFound, "unknown_provider"},
			{errors.New("connection reset"), http.StatusInternalServerError, "internal_server_error"},
		}
		for _, tc := range cases {
			svc, h := newModule(t)
			svc.On("HandleWebhook", "paddle", "{}").Return(billingsvc.WebhookResult{}, tc.err).Once()

			rec, env := do(t, h, http.MethodPost, "/webhooks/paddle", "{}", nil)
			assert.Equal(t, tc.status, rec.Code, tc.code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		}
	})

	t.Run("server errors hide details", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("HandleWebhook", "paddle", "{}").Return(billingsvc.WebhookResult{}, errors.New("pq: password authentication failed")).Once()

		_, env := do(t, h, http.MethodPost, "/webhooks/paddle", "{}", nil)
		require.NotNil(t, env.Error)
		assert.NotContains(t, env.Error.Message, "password")
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t, billing.WithMaxWebhookSize(8))

		rec, env := do(t, h, http.MethodPost, "/webhooks/paddle", `{"id":"0123456789"}`, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "payload_too_large", env.Error.Code)
	})

	t.Run("uses configured delivery header as request id", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t, billing.WithRequestIDHeaders("Paddle-Notification-Id"))
		svc.On("HandleWebhook", "paddle", "{}").Return(billingsvc.WebhookResult{Outcome: billingsvc.OutcomeDuplicate}, nil).Once()

		rec, _ := do(t, h, http.MethodPost, "/webhooks/paddle", "{}", http.Header{"Paddle-Notification-Id": {"ntf_01"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ntf_01", rec.Header().Get(requestid.Header))
	})
}

func TestConsume(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	t.Run("by subscription", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("Consume", id).Return(billingsvc.Consumption{
			Admission: usage.Admission{Allowed: true, Remaining: 41, ChargedID: id},
		}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/consume", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res billingsvc.Consumption
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(41), res.Remaining)
	})

	t.Run("denial is a decision", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("ConsumeForUser", "u1").Return(billingsvc.Consumption{
			Admission: usage.Admission{Reason: usage.ReasonLimitReached},
		}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/users/u1/consume", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res billingsvc.Consumption
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.False(t, res.Allowed)
		assert.Equal(t, usage.ReasonLimitReached, res.Reason)
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t)
		rec, env := do(t, h, http.MethodPost, "/subscriptions/not-a-uuid/consume", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "bad_request", env.Error.Code)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("Consume", id).Return(billingsvc.Consumption{}, subscription.ErrSubscriptionNotFound).Once()

		rec, _ := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/consume", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("contention is retryable", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("ConsumeForUser", "u1").Return(billingsvc.Consumption{}, usage.ErrContention).Once()

		rec, env := do(t, h, http.MethodPost, "/users/u1/consume", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "retry_later", env.Error.Code)
	})

	t.Run("balance", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("Balance", id).Return(int64(7), nil).Once()

		rec, env := do(t, h, http.MethodGet, "/subscriptions/"+id.String()+"/balance", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res struct {
			Remaining int64 `json:"remaining"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, int64(7), res.Remaining)
	})
}

func TestPlanChange(t *testing.T) {
	t.Parallel()

	t.Run("preview reads the plan from the query", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("PreviewPlanChange", "u1", subscription.PlanYearly).Return(proration.Quote{
			From:   subscription.PlanMonthly,
			To:     subscription.PlanYearly,
			Kind:   proration.KindUpgrade,
			Charge: subscription.Money{Amount: 8550, Currency: "USD"},
		}, nil).Once()

		rec, env := do(t, h, http.MethodGet, "/users/u1/plan/preview?plan=yearly", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var q proration.Quote
		require.NoError(t, json.Unmarshal(env.Data, &q))
		assert.Equal(t, int64(8550), q.Charge.Amount)
	})

	t.Run("preview requires a plan", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t)
		rec, env := do(t, h, http.MethodGet, "/users/u1/plan/preview", "", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, []string{"is required"}, env.Error.Details["plan"])
	})

	t.Run("immediate change", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("ChangePlan", "u1", subscription.PlanYearly).Return(&billingsvc.PlanChange{
			Subscription: &subscription.Subscription{UserID: "u1", Plan: subscription.PlanYearly},
			Summary:      "upgraded",
		}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/users/u1/plan", `{"plan":"yearly"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res billingsvc.PlanChange
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, subscription.PlanYearly, res.Subscription.Plan)
	})

	t.Run("deferred change is accepted", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("ChangePlan", "u1", subscription.PlanFree).Return(&billingsvc.PlanChange{
			Quote: proration.Quote{Deferred: true},
		}, nil).Once()

		rec, _ := do(t, h, http.MethodPost, "/users/u1/plan", `{"plan":"free"}`, nil)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("unknown plan fails validation", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t)
		rec, env := do(t, h, http.MethodPost, "/users/u1/plan", `{"plan":"platinum"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "validation_error", env.Error.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t)
		rec, _ := do(t, h, http.MethodPost, "/users/u1/plan", `{"plan":"yearly","user_id":"u2"}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps service errors", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			err    error
			status int
		}{
			{billingsvc.ErrNoActiveSubscription, http.StatusNotFound},
			{billingsvc.ErrSuspended, http.StatusConflict},
			{proration.ErrSamePlan, http.StatusUnprocessableEntity},
			{billingsvc.ErrInvalidPlan, http.StatusUnprocessableEntity},
			{errors.Join(billingsvc.ErrProviderTimeout, context.DeadlineExceeded), http.StatusServiceUnavailable},
			{errors.Join(billingsvc.ErrProviderFailed, errors.New("card declined")), http.StatusBadGateway},
		}
		for _, tc := range cases {
			svc, h := newModule(t)
			svc.On("ChangePlan", "u1", subscription.PlanYearly).Return(nil, tc.err).Once()

			rec, _ := do(t, h, http.MethodPost, "/users/u1/plan", `{"plan":"yearly"}`, nil)
			assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		}
	})

	t.Run("cancel at period end", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t)
		svc.On("CancelAtPeriodEnd", "u1").Return(&subscription.Subscription{UserID: "u1", CancelAtPeriodEnd: true}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/users/u1/cancel", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var sub subscription.Subscription
		require.NoError(t, json.Unmarshal(env.Data, &sub))
		assert.True(t, sub.CancelAtPeriodEnd)
	})
}

func TestOperatorRoutes(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	auth := http.Header{"Authorization": {"Bearer s3cret"}, billing.OperatorHeader: {"alice"}}

	t.Run("not mounted without a token", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t)
		rec, _ := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/unsuspend", "", auth)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = do(t, h, http.MethodGet, "/history", "", auth)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t, billing.WithOperatorToken("s3cret"))
		rec, env := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/unsuspend", "",
			http.Header{"Authorization": {"Bearer guess"}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})

	t.Run("unsuspend records the operator", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t, billing.WithOperatorToken("s3cret"))
		svc.On("ClearSuspension", id, "alice").Return([]*subscription.Subscription{
			{ID: id, Status: subscription.StatusActive},
		}, nil).Once()

		rec, env := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/unsuspend", "", auth)
		require.Equal(t, http.StatusOK, rec.Code)
		var subs []subscription.Subscription
		require.NoError(t, json.Unmarshal(env.Data, &subs))
		require.Len(t, subs, 1)
		assert.Equal(t, subscription.StatusActive, subs[0].Status)
	})

	t.Run("unsuspend of an active subscription conflicts", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t, billing.WithOperatorToken("s3cret"))
		svc.On("ClearSuspension", id, "alice").Return(nil, subscription.ErrNotSuspended).Once()

		rec, env := do(t, h, http.MethodPost, "/subscriptions/"+id.String()+"/unsuspend", "", auth)
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "not_suspended", env.Error.Code)
	})

	t.Run("history filter", func(t *testing.T) {
		t.Parallel()
		svc, h := newModule(t, billing.WithOperatorToken("s3cret"))
		svc.On("History", audit.Filter{UserID: "u1", Source: audit.SourceAbuseGuard, Limit: 10}).Return([]audit.Event{
			{Action: "abuse.suspended", Source: audit.SourceAbuseGuard, UserID: "u1"},
		}, nil).Once()

		rec, env := do(t, h, http.MethodGet, "/history?user_id=u1&source=abuse_guard&limit=10", "", auth)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, env.Meta["count"])
	})

	t.Run("history validation", func(t *testing.T) {
		t.Parallel()
		_, h := newModule(t, billing.WithOperatorToken("s3cret"))
		rec, env := do(t, h, http.MethodGet, "/history?limit=1000&source=cron&subscription_id=x", "", auth)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "limit")
		assert.Contains(t, env.Error.Details, "source")
		assert.Contains(t, env.Error.Details, "subscription_id")
	})
}

func TestProbesAndMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	failing := httpserver.Check{Name: "postgres", Fn: func(context.Context) error { return errors.New("down") }}
	svc, h := newModule(t, billing.WithMetrics(m, registry), billing.WithHealthChecks(failing))

	rec, _ := do(t, h, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	id := uuid.New()
	svc.On("Balance", id).Return(int64(1), nil).Once()
	do(t, h, http.MethodGet, "/subscriptions/"+id.String()+"/balance", "", nil)

	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/subscriptions/{id}/balance"`)
}
