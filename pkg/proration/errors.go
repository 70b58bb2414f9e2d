package proration

import "errors"

var (
	ErrSamePlan         = errors.New("plan change requires a different plan")
	ErrNotRecurring     = errors.New("plan change is only possible between recurring plans")
	ErrCurrencyMismatch = errors.New("plans are priced in different currencies")
	ErrInvalidElapsed   = errors.New("elapsed fraction is not a number")
)
