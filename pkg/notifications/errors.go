package notifications

import "errors"

var ErrUnknownKind = errors.New("unknown notification kind")
