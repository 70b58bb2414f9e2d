package license_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/provider/license"
	"github.com/dmitrymomot/billingcore/pkg/subscription"
	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func signed(t *testing.T, body []byte, at time.Time) http.Header {
	t.Helper()
	sig, err := webhook.Sign("lic_secret", body, at)
	require.NoError(t, err)
	h := http.Header{}
	sig.Apply(h)
	return h
}

func newNormalizer(t *testing.T) *license.Normalizer {
	t.Helper()
	n, err := license.NewNormalizer(
		license.Config{WebhookSecret: "lic_secret", MaxAge: 5 * time.Minute},
		license.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return n
}

func TestNormalizeActivation(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"lic_evt_1","type":"license.activated","created_at":"2025-03-01T11:59:00Z","data":{"license_key":"KEY-1","user_id":"u1","email":"u1@example.com","quantity":2}}`)
	ev, err := newNormalizer(t).Normalize(context.Background(), body, signed(t, body, now))
	require.NoError(t, err)

	assert.Equal(t, subscription.ProviderLicense, ev.Provider)
	assert.Equal(t, "lic_evt_1", ev.EventID)
	assert.Equal(t, subscription.EventPaymentSucceeded, ev.Type)
	assert.True(t, ev.OneShot)
	assert.Equal(t, "KEY-1", ev.ProviderSubscriptionID)
	assert.Equal(t, "u1", ev.UserID)
	assert.EqualValues(t, 2, ev.Quantity)
}

func TestNormalizeRevocation(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"lic_evt_2","type":"license.revoked","data":{"license_key":"KEY-1"}}`)
	ev, err := newNormalizer(t).Normalize(context.Background(), body, signed(t, body, now))
	require.NoError(t, err)

	assert.Equal(t, subscription.EventCancelled, ev.Type)
	assert.True(t, ev.EffectiveAt.IsZero())
	assert.False(t, ev.OneShot)
}

func TestNormalizeFallsBackToDeliveryID(t *testing.T) {
	t.Parallel()

	body := []byte(`{"type":"license.activated","data":{"license_key":"KEY-2","user_id":"u2"}}`)
	h := signed(t, body, now)
	ev, err := newNormalizer(t).Normalize(context.Background(), body, h)
	require.NoError(t, err)
	assert.Equal(t, h.Get(webhook.HeaderID), ev.EventID)
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"e","type":"license.activated","data":{"license_key":"KEY-1"}}`)
	n := newNormalizer(t)

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()
		_, err := n.Normalize(context.Background(), body, http.Header{})
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})

	t.Run("replayed", func(t *testing.T) {
		t.Parallel()
		_, err := n.Normalize(context.Background(), body, signed(t, body, now.Add(-10*time.Minute)))
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
		assert.ErrorIs(t, err, webhook.ErrSignatureExpired)
	})

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		h := signed(t, body, now)
		_, err := n.Normalize(context.Background(), []byte(`{"id":"e","type":"license.activated","data":{"license_key":"KEY-9"}}`), h)
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})

	t.Run("no license key", func(t *testing.T) {
		t.Parallel()
		raw := []byte(`{"id":"e","type":"license.activated","data":{}}`)
		_, err := n.Normalize(context.Background(), raw, signed(t, raw, now))
		assert.ErrorIs(t, err, subscription.ErrMalformedPayload)
	})
}

func TestSkipVerification(t *testing.T) {
	t.Parallel()

	_, err := license.NewNormalizer(license.Config{})
	assert.ErrorIs(t, err, license.ErrNotConfigured)

	n, err := license.NewNormalizer(license.Config{SkipVerification: true})
	require.NoError(t, err)
	ev, err := n.Normalize(context.Background(), []byte(`{"id":"e","type":"license.activated","data":{"license_key":"K"}}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, subscription.EventPaymentSucceeded, ev.Type)
}
