package pool

import "errors"

var (
	// ErrNoPools indicates that subsystem init could not create a single pool.
	ErrNoPools = errors.New("pool: no pools initialized")

	// ErrNotActive indicates an operation on a subsystem or pool that was shut down.
	ErrNotActive = errors.New("pool: not active")

	// ErrZeroSize indicates a zero-byte allocation request.
	ErrZeroSize = errors.New("pool: zero-size allocation")

	// ErrTooLarge indicates a request above the single-allocation maximum or at least one boundary granularity.
	ErrTooLarge = errors.New("pool: allocation too large")

	// ErrBadAlignment indicates an alignment that is not a power of two.
	ErrBadAlignment = errors.New("pool: alignment must be a power of two")

	// ErrExhausted indicates no pool has a free block that fits the request safely.
	ErrExhausted = errors.New("pool: no boundary-safe free block")

	// ErrInvalidAllocation indicates Free was given an allocation this subsystem does not hold.
	ErrInvalidAllocation = errors.New("pool: invalid allocation")

	// ErrUnsafeLock indicates the locking service mapped a region across a boundary.
	ErrUnsafeLock = errors.New("pool: locked region crosses boundary")

	// ErrCorrupt indicates Verify found a broken pool invariant.
	ErrCorrupt = errors.New("pool: invariant violated")
)
