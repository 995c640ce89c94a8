//go:build linux

package mem

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/internal/format"
)

const (
	pagemapEntrySize = 8
	pagemapPresent   = 1 << 63
	pagemapPFNMask   = 1<<55 - 1
)

// MlockLocker pins regions with mlock and translates them through
// /proc/self/pagemap. Without CAP_SYS_ADMIN the kernel hides frame numbers;
// Lock then reports ErrLockUnavailable and callers fall back to identity
// addressing.
//
// MlockLocker is not safe for concurrent use.
type MlockLocker struct {
	PagemapPath string // defaults to /proc/self/pagemap
	Boundary    uint64 // checked for LockNoBoundaryCross; 0 means format.Boundary64K

	next uint32
	held map[uint32][]byte
}

// NewMlockLocker returns a locker reading the current process's pagemap.
func NewMlockLocker() *MlockLocker {
	return &MlockLocker{PagemapPath: "/proc/self/pagemap"}
}

// Lock pins r.Data and returns the physical address of its first byte.
func (l *MlockLocker) Lock(r Region, flags LockFlags) (Lock, error) {
	if r.Size == 0 || uint64(len(r.Data)) < r.Size {
		return Lock{}, fmt.Errorf("region %#x+%d has no backing bytes: %w", r.Addr, r.Size, ErrLockUnavailable)
	}
	data := r.Data[:r.Size]
	if err := unix.Mlock(data); err != nil {
		return Lock{}, fmt.Errorf("mlock %#x+%d: %v: %w", r.Addr, r.Size, err, ErrLockUnavailable)
	}

	phys, err := l.translate(r.Addr, r.Size, flags&LockContiguous != 0)
	if err == nil && flags&LockNoBoundaryCross != 0 {
		g := l.Boundary
		if g == 0 {
			g = format.Boundary64K
		}
		if boundary.Crosses(phys, r.Size, g) {
			err = fmt.Errorf("phys %#x+%d: %w", phys, r.Size, ErrLockRejected)
		}
	}
	if err != nil {
		_ = unix.Munlock(data)
		return Lock{}, err
	}

	if l.held == nil {
		l.held = make(map[uint32][]byte)
	}
	l.next++
	l.held[l.next] = data
	return Lock{Handle: l.next, PhysBase: phys}, nil
}

// Unlock unpins the region behind handle.
func (l *MlockLocker) Unlock(handle uint32) error {
	data, ok := l.held[handle]
	if !ok {
		return fmt.Errorf("unlock %d: %w", handle, ErrUnknownHandle)
	}
	delete(l.held, handle)
	return unix.Munlock(data)
}

// translate returns the physical address of addr. With contiguous set every
// page of [addr, addr+size) must map to consecutive frames.
func (l *MlockLocker) translate(addr, size uint64, contiguous bool) (uint64, error) {
	path := l.PagemapPath
	if path == "" {
		path = "/proc/self/pagemap"
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %v: %w", path, err, ErrLockUnavailable)
	}
	defer f.Close()

	pageSize := uint64(unix.Getpagesize())
	first, last := addr/pageSize, (addr+size-1)/pageSize
	var entry [pagemapEntrySize]byte
	var base, prev uint64
	for page := first; page <= last; page++ {
		if _, err := f.ReadAt(entry[:], int64(page*pagemapEntrySize)); err != nil {
			return 0, fmt.Errorf("read pagemap entry %d: %v: %w", page, err, ErrLockUnavailable)
		}
		v := binary.LittleEndian.Uint64(entry[:])
		if v&pagemapPresent == 0 {
			return 0, fmt.Errorf("page %#x not present: %w", page*pageSize, ErrLockUnavailable)
		}
		pfn := v & pagemapPFNMask
		if pfn == 0 {
			return 0, fmt.Errorf("frame numbers hidden: %w", ErrLockUnavailable)
		}
		if page == first {
			base = pfn*pageSize + addr%pageSize
		} else if contiguous && pfn != prev+1 {
			return 0, fmt.Errorf("page %#x not physically contiguous: %w", page*pageSize, ErrLockRejected)
		}
		prev = pfn
	}
	return base, nil
}
