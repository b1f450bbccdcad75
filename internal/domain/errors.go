package domain

import "errors"

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnauthorized       = errors.New("actor not authorized")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotFound           = errors.New("not found")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrNilUser            = errors.New("user is required")
)
