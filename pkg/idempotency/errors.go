package idempotency

import "errors"

var (
	ErrInvalidKey  = errors.New("idempotency key requires provider and event id")
	ErrClaimFailed = errors.New("failed to claim event")
	ErrInvalidSpec = errors.New("invalid prune schedule")
	ErrPruneFailed = errors.New("failed to prune idempotency markers")
)
