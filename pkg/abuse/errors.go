package abuse

import "errors"

var (
	ErrInvalidThresholds = errors.New("suspend threshold must be greater than the alert threshold")
	ErrUserRequired      = errors.New("user id is required")
	ErrStoreRequired     = errors.New("velocity store is required")
)
