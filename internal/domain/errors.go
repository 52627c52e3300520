package domain

import "errors"

var (
	ErrTickRange      = errors.New("tick outside valid range")
	ErrSqrtPriceRange = errors.New("sqrt price outside valid range")
	ErrInvalidRange   = errors.New("invalid tick range")
	ErrPoolNotFound   = errors.New("pool not found")
	ErrMissingPoolKey = errors.New("missing pool key")
	ErrNoEligiblePool = errors.New("no eligible pool")
	ErrLockHeld       = errors.New("lock already held")
	ErrNotFound       = errors.New("not found")
)
