// Package mem defines the collaborators the DMA allocators depend on: a raw
// memory provider that hands out blocks, and an optional address-locking
// service that pins a region and reports the physical address hardware must
// be programmed with.
//
// Two families of implementations are provided. SimProvider and SimLocker
// model a conventional-memory arena with a configurable physical offset and
// failure injection; they are deterministic and used by tests and the CLI
// simulations. MmapProvider and MlockLocker use anonymous mappings, mlock and
// /proc/self/pagemap on the host.
package mem

import (
	"errors"
	"strings"
)

var (
	// ErrOutOfMemory indicates the provider cannot satisfy the request.
	ErrOutOfMemory = errors.New("mem: out of memory")

	// ErrUnknownBlock indicates Release was called with a block the provider did not hand out.
	ErrUnknownBlock = errors.New("mem: unknown block")

	// ErrLockUnavailable indicates the locking service is absent or cannot translate addresses.
	ErrLockUnavailable = errors.New("mem: address locking unavailable")

	// ErrLockRejected indicates the service could not honour the requested guarantees.
	ErrLockRejected = errors.New("mem: lock constraints not satisfiable")

	// ErrUnknownHandle indicates Unlock was called with a handle that is not held.
	ErrUnknownHandle = errors.New("mem: unknown lock handle")
)

// Block is a raw allocation from a Provider.
type Block struct {
	Addr uint64 // CPU-visible address of Data[0]
	Phys uint64 // device-visible address the provider reports for Data[0]
	Data []byte
}

// Size returns the block length in bytes.
func (b *Block) Size() uint64 {
	return uint64(len(b.Data))
}

// Provider hands out raw memory reachable by the bus-master hardware.
type Provider interface {
	Allocate(size int) (*Block, error)
	Release(b *Block) error
}

// LockFlags select the guarantees requested from a Locker.
type LockFlags uint8

const (
	// LockContiguous requires the region to be physically contiguous.
	LockContiguous LockFlags = 1 << iota
	// LockNoBoundaryCross requires the physical range not to straddle a 64 KiB boundary.
	LockNoBoundaryCross
)

func (f LockFlags) String() string {
	var parts []string
	if f&LockContiguous != 0 {
		parts = append(parts, "contiguous")
	}
	if f&LockNoBoundaryCross != 0 {
		parts = append(parts, "no-boundary-cross")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Region is a CPU-visible range submitted for locking.
type Region struct {
	Addr uint64
	Size uint64
	// Data backs the region when the locker needs the bytes themselves (mlock).
	Data []byte
}

// Lock describes a successful lock.
type Lock struct {
	Handle   uint32
	PhysBase uint64
}

// Locker pins regions and reports their physical base. Implementations are
// optional collaborators: callers treat any error as "fall back to identity
// addressing".
type Locker interface {
	Lock(r Region, flags LockFlags) (Lock, error)
	Unlock(handle uint32) error
}
