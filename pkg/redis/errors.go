package redis

import "errors"

var (
	ErrNotConfigured     = errors.New("redis url is not configured")
	ErrInvalidURL        = errors.New("invalid redis url")
	ErrNotReady          = errors.New("redis is not reachable")
	ErrHealthcheckFailed = errors.New("redis ping failed")
)
