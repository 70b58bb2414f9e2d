package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
	ErrInvalidURL           = errors.New("invalid webhook URL")
	ErrMissingSignature     = errors.New("webhook signature headers are missing")
	ErrSignatureMismatch    = errors.New("webhook signature mismatch")
	ErrSignatureExpired     = errors.New("webhook signature timestamp is outside the accepted window")
	ErrDeliveryFailed       = errors.New("webhook delivery failed")
	ErrPermanentFailure     = errors.New("permanent webhook failure")
	ErrTemporaryFailure     = errors.New("temporary webhook failure")
)

// IsSignatureError reports whether err comes from rejecting a signature.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrSignatureExpired)
}
