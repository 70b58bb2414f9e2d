package email

import "errors"

var (
	ErrConfig  = errors.New("email: invalid config")
	ErrMessage = errors.New("email: invalid message")
	ErrSend    = errors.New("email: send failed")
)
