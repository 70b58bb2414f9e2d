package billing

import (
	"io"
	"net/http"

	"github.com/dmitrymomot/billingcore/handler"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// webhook reads the raw body itself; signatures are computed over the exact
// bytes the provider sent.
func (m *Module) webhook(ctx handler.Context, req webhookRequest) handler.Response {
	r := ctx.Request()
	body, err := io.ReadAll(io.LimitReader(r.Body, m.maxWebhookSize+1))
	if err != nil {
		return handler.Error(handler.ErrBadRequest)
	}
	if int64(len(body)) > m.maxWebhookSize {
		return handler.Error(ErrPayloadTooLarge)
	}

	res, err := m.svc.HandleWebhook(ctx, req.Provider, body, r.Header)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(res)
}

// consume answers 200 for both decisions; a denial is not a failure.
func (m *Module) consume(ctx handler.Context, req subscriptionRequest) handler.Response {
	res, err := m.svc.Consume(ctx, req.ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(res)
}

func (m *Module) consumeForUser(ctx handler.Context, req userRequest) handler.Response {
	res, err := m.svc.ConsumeForUser(ctx, req.UserID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(res)
}

func (m *Module) balance(ctx handler.Context, req subscriptionRequest) handler.Response {
	remaining, err := m.svc.Balance(ctx, req.ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(map[string]any{"subscription_id": req.ID, "remaining": remaining})
}

func (m *Module) previewPlanChange(ctx handler.Context, req planRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	quote, err := m.svc.PreviewPlanChange(ctx, req.UserID, req.Plan)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(quote)
}

func (m *Module) changePlan(ctx handler.Context, req planRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	change, err := m.svc.ChangePlan(ctx, req.UserID, req.Plan)
	if err != nil {
		return handler.Error(err)
	}
	status := http.StatusOK
	if change.Quote.Deferred {
		status = http.StatusAccepted
	}
	return handler.JSON(change, handler.WithJSONStatus(status))
}

func (m *Module) cancel(ctx handler.Context, req userRequest) handler.Response {
	sub, err := m.svc.CancelAtPeriodEnd(ctx, req.UserID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(sub)
}

func (m *Module) unsuspend(ctx handler.Context, req subscriptionRequest) handler.Response {
	cleared, err := m.svc.ClearSuspension(ctx, req.ID, handler.ContextValue[string](ctx, operatorKey))
	if err != nil {
		return handler.Error(err)
	}
	if cleared == nil {
		cleared = []*subscription.Subscription{}
	}
	return handler.JSON(cleared)
}

func (m *Module) history(ctx handler.Context, req historyRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	events, err := m.svc.History(ctx, req.filter())
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(events, handler.WithJSONMeta(map[string]any{"count": len(events)}))
}
