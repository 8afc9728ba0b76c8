package domain

import "errors"

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrBookingClaimed    = errors.New("booking already claimed by another driver")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor not permitted for this transition")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrNotConnected      = errors.New("user has no live connection")
)
