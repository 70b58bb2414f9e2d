package stripe

import "errors"

var (
	ErrNotConfigured = errors.New("stripe: provider is not configured")
	ErrUpdateFailed  = errors.New("stripe: subscription update failed")
	ErrNoItems       = errors.New("stripe: subscription has no items")
)
