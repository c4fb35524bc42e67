package raddec

import "errors"

// Domain errors for the raddec package.
var (
	// ErrInvalidRaddec is returned when a raddec lacks its transmitter identity
	// or carries no receivers.
	ErrInvalidRaddec = errors.New("raddec: invalid")

	// ErrInvalidSignature is returned when a signature string cannot be parsed.
	ErrInvalidSignature = errors.New("raddec: invalid signature")

	// ErrUnknownEvent is returned when an event name or number is not recognised.
	ErrUnknownEvent = errors.New("raddec: unknown event")
)
