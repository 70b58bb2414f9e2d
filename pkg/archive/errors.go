package archive

import "errors"

var (
	ErrInvalidConfig      = errors.New("archive: invalid configuration")
	ErrLoadConfig         = errors.New("archive: failed to load aws config")
	ErrBucketNotFound     = errors.New("archive: bucket not found")
	ErrAccessDenied       = errors.New("archive: access denied")
	ErrServiceUnavailable = errors.New("archive: service unavailable")
	ErrTimeout            = errors.New("archive: operation timed out")
	ErrEmptyPayload       = errors.New("archive: payload is empty")
)
