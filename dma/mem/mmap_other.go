//go:build !unix

package mem

import (
	"fmt"
	"unsafe"
)

// MmapProvider falls back to heap slices where anonymous mappings are not
// available. Block.Phys equals Block.Addr.
type MmapProvider struct {
	live map[uint64]*Block
}

// NewMmapProvider returns an empty provider.
func NewMmapProvider() *MmapProvider {
	return &MmapProvider{live: make(map[uint64]*Block)}
}

// Allocate returns size bytes of zeroed heap memory.
func (p *MmapProvider) Allocate(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrOutOfMemory)
	}
	data := make([]byte, size)
	addr := uint64(uintptr(unsafe.Pointer(&data[0])))
	b := &Block{Addr: addr, Phys: addr, Data: data}
	p.live[addr] = b
	return b, nil
}

// Release forgets b.
func (p *MmapProvider) Release(b *Block) error {
	if b == nil || p.live[b.Addr] != b {
		return ErrUnknownBlock
	}
	delete(p.live, b.Addr)
	return nil
}

// Live returns the number of outstanding blocks.
func (p *MmapProvider) Live() int { return len(p.live) }
