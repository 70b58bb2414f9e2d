package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// maxClockSkew is how far in the future a timestamp may be.
const maxClockSkew = time.Minute

// Signature is the set of headers that authenticate one delivery.
type Signature struct {
	Value     string
	Timestamp int64
	ID        string
}

// Apply writes the signature headers to h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// Sign computes the signature of payload at the given time.
func Sign(secret string, payload []byte, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return Signature{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := at.Unix()
	return Signature{
		Value:     compute(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.NewString(),
	}, nil
}

// ParseHeaders extracts the signature from request headers.
// The delivery id is optional.
func ParseHeaders(h http.Header) (Signature, error) {
	sig := Signature{
		Value: h.Get(HeaderSignature),
		ID:    h.Get(HeaderID),
	}
	raw := h.Get(HeaderTimestamp)
	if sig.Value == "" || raw == "" {
		return Signature{}, ErrMissingSignature
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return Signature{}, fmt.Errorf("%w: invalid timestamp %q", ErrMissingSignature, raw)
	}
	sig.Timestamp = ts
	return sig, nil
}

// Verify checks sig against payload. A positive maxAge bounds how old the
// timestamp may be relative to now.
func Verify(secret string, payload []byte, sig Signature, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if sig.Value == "" {
		return ErrMissingSignature
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(sig.Timestamp, 0))
		if age > maxAge || age < -maxClockSkew {
			return fmt.Errorf("%w: age %s", ErrSignatureExpired, age.Round(time.Second))
		}
	}

	expected := compute(secret, sig.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return ErrSignatureMismatch
	}
	return nil
}

func compute(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
