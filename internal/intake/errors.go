package intake

import "errors"

// Rejection reasons returned by the Handle methods. Callers normally only log
// them; nothing is retried.
var (
	// ErrInvalid is returned for input missing its identity fields.
	ErrInvalid = errors.New("intake: invalid input")

	// ErrStale is returned for input older than the stale window when stale
	// input is not accepted.
	ErrStale = errors.New("intake: stale timestamp")

	// ErrFuture is returned for future-dated input when it is not accepted.
	ErrFuture = errors.New("intake: future timestamp")

	// ErrFiltered is returned for raddecs rejected by the input filter.
	ErrFiltered = errors.New("intake: filtered")

	// ErrNoProperties is returned for attributes with no allowed property.
	ErrNoProperties = errors.New("intake: no allowed properties")

	// ErrUnknownDevice is returned for attributes whose device is not live.
	ErrUnknownDevice = errors.New("intake: unknown device")

	// ErrAlreadyRunning is returned by Run when the Manager is already running.
	ErrAlreadyRunning = errors.New("intake: already running")
)
