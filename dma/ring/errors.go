package ring

import "errors"

var (
	// ErrBadDevice indicates a device index outside [0, MaxDevices).
	ErrBadDevice = errors.New("ring: device index out of range")

	// ErrNotInitialized indicates the device's rings have not been built.
	ErrNotInitialized = errors.New("ring: device not initialized")

	// ErrAlreadyInitialized indicates Init was called twice for a device.
	ErrAlreadyInitialized = errors.New("ring: device already initialized")

	// ErrRetriesExhausted indicates no boundary-safe block was obtained within the retry budget.
	ErrRetriesExhausted = errors.New("ring: retries exhausted")

	// ErrUnreachable indicates the provider returned memory beyond the device's address limit.
	ErrUnreachable = errors.New("ring: block beyond device address limit")

	// ErrExhausted indicates the slot at head is still in use.
	ErrExhausted = errors.New("ring: no free slot")

	// ErrTooLarge indicates a request larger than a large slot.
	ErrTooLarge = errors.New("ring: buffer too large")
)
