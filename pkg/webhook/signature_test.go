package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/webhook"
)

func TestSign(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"event":"license.activated"}`)

	sig, err := webhook.Sign("secret", payload, at)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", at.Unix(), payload)))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig.Value)
	assert.Equal(t, at.Unix(), sig.Timestamp)
	assert.NotEmpty(t, sig.ID)

	_, err = webhook.Sign("", payload, at)
	assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)

	_, err = webhook.Sign("secret", nil, at)
	assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
}

func TestVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte(`{"test":"data"}`)

	valid, err := webhook.Sign("secret", payload, now.Add(-time.Minute))
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		payload []byte
		sig     webhook.Signature
		wantErr error
	}{
		{name: "valid", secret: "secret", payload: payload, sig: valid},
		{name: "wrong secret", secret: "other", payload: payload, sig: valid, wantErr: webhook.ErrSignatureMismatch},
		{name: "tampered payload", secret: "secret", payload: []byte(`{"test":"evil"}`), sig: valid, wantErr: webhook.ErrSignatureMismatch},
		{
			name:    "expired",
			secret:  "secret",
			payload: payload,
			sig:     webhook.Signature{Value: valid.Value, Timestamp: now.Add(-10 * time.Minute).Unix()},
			wantErr: webhook.ErrSignatureExpired,
		},
		{
			name:    "future",
			secret:  "secret",
			payload: payload,
			sig:     webhook.Signature{Value: valid.Value, Timestamp: now.Add(5 * time.Minute).Unix()},
			wantErr: webhook.ErrSignatureExpired,
		},
		{name: "missing signature", secret: "secret", payload: payload, sig: webhook.Signature{Timestamp: valid.Timestamp}, wantErr: webhook.ErrMissingSignature},
		{name: "empty secret", secret: "", payload: payload, sig: valid, wantErr: webhook.ErrInvalidConfiguration},
		{name: "empty payload", secret: "secret", payload: nil, sig: valid, wantErr: webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := webhook.Verify(tt.secret, tt.payload, tt.sig, 5*time.Minute, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyWithoutMaxAge(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"a":1}`)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	sig, err := webhook.Sign("secret", payload, old)
	require.NoError(t, err)

	assert.NoError(t, webhook.Verify("secret", payload, sig, 0, time.Now()))
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		payload := []byte(`{"a":1}`)
		now := time.Now()
		sig, err := webhook.Sign("secret", payload, now)
		require.NoError(t, err)

		h := http.Header{}
		sig.Apply(h)
		assert.Equal(t, strconv.FormatInt(now.Unix(), 10), h.Get("x-webhook-timestamp"))

		parsed, err := webhook.ParseHeaders(h)
		require.NoError(t, err)
		assert.Equal(t, sig, parsed)
		assert.NoError(t, webhook.Verify("secret", payload, parsed, time.Minute, now))
	})

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()

		_, err := webhook.ParseHeaders(http.Header{})
		assert.ErrorIs(t, err, webhook.ErrMissingSignature)
		assert.True(t, webhook.IsSignatureError(err))
	})

	t.Run("bad timestamp", func(t *testing.T) {
		t.Parallel()

		h := http.Header{}
		h.Set(webhook.HeaderSignature, "abc")
		h.Set(webhook.HeaderTimestamp, "yesterday")
		_, err := webhook.ParseHeaders(h)
		assert.ErrorIs(t, err, webhook.ErrMissingSignature)
	})
}
