package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/billingcore/pkg/archive"
	"github.com/dmitrymomot/billingcore/pkg/audit"
	"github.com/dmitrymomot/billingcore/pkg/logger"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Outcome tells the transport how a webhook ended. Every outcome is
// acknowledged to the provider.
type Outcome string

const (
	OutcomeProcessed  Outcome = "processed"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeUnhandled  Outcome = "unhandled"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeSkipped    Outcome = "skipped"
)

// WebhookResult is returned for acknowledged webhooks.
type WebhookResult struct {
	Outcome   Outcome             `json:"outcome"`
	Provider  string              `json:"provider"`
	EventID   string              `json:"event_id,omitempty"`
	EventType string              `json:"event_type,omitempty"`
	Action    string              `json:"action,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Status    subscription.Status `json:"status,omitempty"`
}

// HandleWebhook verifies, deduplicates and applies one provider webhook.
// Errors are returned only for authentication failures, malformed payloads,
// unknown providers and infrastructure failures; the provider retries those.
func (s *Service) HandleWebhook(ctx context.Context, provider string, body []byte, header http.Header) (WebhookResult, error) {
	start := s.now()
	res, err := s.handleWebhook(ctx, subscription.Provider(provider), body, header)
	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveWebhook(provider, outcome, s.now().Sub(start))
	return res, err
}

func (s *Service) handleWebhook(ctx context.Context, provider subscription.Provider, body []byte, header http.Header) (WebhookResult, error) {
	res := WebhookResult{Provider: provider.String()}

	ev, err := s.registry.Normalize(ctx, provider, body, header)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, subscription.ErrInvalidSignature) && !errors.Is(err, subscription.ErrMalformedPayload) &&
			!errors.Is(err, subscription.ErrUnknownProvider) {
			level = slog.LevelError
		}
		s.log.Log(ctx, level, "webhook rejected", logger.Provider(provider), logger.Error(err))
		return res, err
	}
	res.EventID = ev.EventID
	res.EventType = string(ev.Type)

	s.archiveBody(ctx, ev, body)

	if !ev.Handled() {
		s.log.InfoContext(ctx, "webhook acknowledged without action",
			logger.Provider(provider),
			logger.EventID(ev.EventID),
			slog.String("provider_event_type", ev.ProviderEventType),
		)
		res.Outcome = OutcomeUnhandled
		return res, nil
	}

	var out *subscription.Outcome
	applied, err := s.ledger.Apply(ctx, provider.String(), ev.EventID, func(ctx context.Context) error {
		var err error
		out, err = s.machine.Apply(ctx, ev)
		return err
	})
	switch {
	case errors.Is(err, subscription.ErrUnresolvable):
		s.unresolved(ctx, ev, err)
		res.Outcome = OutcomeUnresolved
		res.Reason = err.Error()
		return res, nil
	case err != nil:
		s.log.ErrorContext(ctx, "webhook apply failed",
			logger.Provider(provider),
			logger.EventID(ev.EventID),
			logger.Error(err),
		)
		return res, err
	case !applied:
		s.log.DebugContext(ctx, "duplicate webhook", logger.Provider(provider), logger.EventID(ev.EventID))
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	res.Action = out.Action
	res.Status = out.To
	res.Reason = out.Reason
	if out.Result == subscription.ResultSkipped {
		res.Outcome = OutcomeSkipped
		return res, nil
	}
	res.Outcome = OutcomeProcessed
	s.notify(ctx, out.Notifications...)
	return res, nil
}

// unresolved records an event that could not be linked to a user or plan.
// The apply transaction has rolled back, so the row is written on its own.
func (s *Service) unresolved(ctx context.Context, ev *subscription.BillingEvent, cause error) {
	s.log.WarnContext(ctx, "webhook unresolved, manual follow-up required",
		logger.Provider(ev.Provider),
		logger.EventID(ev.EventID),
		logger.EventType(string(ev.Type)),
		logger.Error(cause),
	)
	err := s.audit.LogError(ctx, "billing_event.unresolved", audit.SourceProvider, cause,
		audit.WithProviderEvent(ev.Provider.String(), ev.EventID),
		audit.WithSubscription("", ev.UserID),
		audit.WithMetadata("event_type", string(ev.Type)),
		audit.WithMetadata("provider_subscription_id", ev.ProviderSubscriptionID),
		audit.WithMetadata("price_id", ev.PriceID),
	)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to audit unresolved webhook", logger.EventID(ev.EventID), logger.Error(err))
	}
}

func (s *Service) archiveBody(ctx context.Context, ev *subscription.BillingEvent, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, s.archiveTimeout)
	defer cancel()

	key, err := s.archive.Put(ctx, archive.Record{
		Provider:   ev.Provider.String(),
		EventID:    ev.EventID,
		ReceivedAt: s.now().UTC(),
		Body:       body,
	})
	if err != nil {
		s.log.WarnContext(ctx, "failed to archive webhook payload",
			logger.Provider(ev.Provider),
			logger.EventID(ev.EventID),
			logger.Error(err),
		)
		return
	}
	if key != "" {
		s.log.DebugContext(ctx, "webhook payload archived", logger.EventID(ev.EventID), slog.String("key", key))
	}
}
