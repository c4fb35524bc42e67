package presence

import "errors"

// Domain errors for attribute decoding.
var (
	// ErrInvalidDynamb is returned when a dynamb lacks a well-formed device
	// identity or timestamp.
	ErrInvalidDynamb = errors.New("presence: invalid dynamb")

	// ErrInvalidStatid is returned when a statid lacks a well-formed device
	// identity.
	ErrInvalidStatid = errors.New("presence: invalid statid")
)
