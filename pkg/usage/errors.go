package usage

import "errors"

// ErrContention is returned when admission kept losing races. It is safe to retry.
var ErrContention = errors.New("usage admission contended, retry")
