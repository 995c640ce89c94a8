// Package ring implements fixed-size per-device buffer rings with dual
// device/CPU addressing, used for per-packet receive and transmit buffers.
//
// Each device index owns a large ring and a small ring. Alloc only ever
// claims the slot at head, so it is O(1) and never searches; a busy head
// slot means the ring is exhausted. Free and PhysToVirt scan by device
// address, which is what the completion path learns from the NIC.
//
// A Manager is not safe for concurrent use.
package ring

import (
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/buf"
)

// Class selects one of a device's two rings.
type Class int

const (
	ClassSmall Class = iota
	ClassLarge
)

func (c Class) String() string {
	if c == ClassLarge {
		return "large"
	}
	return "small"
}

// Slot is one fixed-size buffer.
type Slot struct {
	Phys  uint64 `json:"phys"`
	Host  uint64 `json:"host"`
	Size  uint64 `json:"size"`
	InUse bool   `json:"in_use"`
}

// Ring is a fixed array of slots with head and tail indices.
type Ring struct {
	class    Class
	block    *mem.Block
	slotSize uint64
	slots    []Slot
	head     int // next slot Alloc claims
	tail     int // oldest outstanding slot
	inUse    int

	allocCount    uint64
	freeCount     uint64
	allocFailures uint64
}

// claim takes the slot at head.
func (r *Ring) claim() (*Slot, bool) {
	s := &r.slots[r.head]
	if s.InUse {
		r.allocFailures++
		return nil, false
	}
	s.InUse = true
	r.inUse++
	r.head = (r.head + 1) % len(r.slots)
	r.allocCount++
	return s, true
}

// release clears the slot with device address phys. Unknown or already free
// addresses are ignored.
func (r *Ring) release(phys uint64) bool {
	i := r.find(phys)
	if i < 0 || !r.slots[i].InUse {
		return false
	}
	r.slots[i].InUse = false
	r.inUse--
	r.freeCount++
	if r.inUse == 0 {
		r.tail = r.head
		return true
	}
	for !r.slots[r.tail].InUse {
		r.tail = (r.tail + 1) % len(r.slots)
	}
	return true
}

func (r *Ring) find(phys uint64) int {
	for i := range r.slots {
		if r.slots[i].Phys == phys {
			return i
		}
	}
	return -1
}

// bytes returns the CPU view of slot i, or nil when the slot lies outside the block.
func (r *Ring) bytes(i int) []byte {
	b, ok := buf.Slice(r.block.Data, r.slots[i].Host-r.block.Addr, r.slots[i].Size)
	if !ok {
		return nil
	}
	return b
}

// Stats is a snapshot of one ring.
type Stats struct {
	Class         string `json:"class"`
	Count         int    `json:"count"`
	SlotSize      uint64 `json:"slot_size"`
	InUse         int    `json:"in_use"`
	Head          int    `json:"head"`
	Tail          int    `json:"tail"`
	AllocCount    uint64 `json:"alloc_count"`
	FreeCount     uint64 `json:"free_count"`
	AllocFailures uint64 `json:"alloc_failures"`
	BlockSize     uint64 `json:"block_size"`
}

func (r *Ring) stats() Stats {
	return Stats{
		Class:         r.class.String(),
		Count:         len(r.slots),
		SlotSize:      r.slotSize,
		InUse:         r.inUse,
		Head:          r.head,
		Tail:          r.tail,
		AllocCount:    r.allocCount,
		FreeCount:     r.freeCount,
		AllocFailures: r.allocFailures,
		BlockSize:     r.block.Size(),
	}
}

// Slots returns a copy of the ring's slots.
func (r *Ring) Slots() []Slot {
	return append([]Slot(nil), r.slots...)
}
