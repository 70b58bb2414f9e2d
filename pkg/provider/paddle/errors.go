package paddle

import "errors"

var (
	ErrNotConfigured = errors.New("paddle: provider is not configured")
	ErrUpdateFailed  = errors.New("paddle: subscription update failed")
)
