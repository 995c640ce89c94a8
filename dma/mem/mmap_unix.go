//go:build unix

package mem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapProvider hands out anonymous private mappings. Block.Phys equals
// Block.Addr: the provider cannot see physical addresses, MlockLocker can.
//
// MmapProvider is not safe for concurrent use.
type MmapProvider struct {
	live map[uint64]*Block
}

// NewMmapProvider returns an empty provider.
func NewMmapProvider() *MmapProvider {
	return &MmapProvider{live: make(map[uint64]*Block)}
}

// Allocate maps size bytes of zeroed, read-write memory.
func (p *MmapProvider) Allocate(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, ErrOutOfMemory)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %v: %w", size, err, ErrOutOfMemory)
	}
	addr := uint64(uintptr(unsafe.Pointer(&data[0])))
	b := &Block{Addr: addr, Phys: addr, Data: data}
	p.live[addr] = b
	return b, nil
}

// Release unmaps b.
func (p *MmapProvider) Release(b *Block) error {
	if b == nil || p.live[b.Addr] != b {
		return ErrUnknownBlock
	}
	delete(p.live, b.Addr)
	if err := unix.Munmap(b.Data); err != nil {
		return fmt.Errorf("munmap %#x: %w", b.Addr, err)
	}
	return nil
}

// Live returns the number of outstanding mappings.
func (p *MmapProvider) Live() int { return len(p.live) }
