package pool

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/format"
)

// State is a pool's lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateUninitialized, StateActive, StateDestroyed} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("pool: unknown state %q", b)
}

// FreeBlock is a free range inside a pool, relative to the usable region start.
type FreeBlock struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

// Counters are per-pool event counts.
type Counters struct {
	BoundaryViolations   uint64 `json:"boundary_violations"`
	AlignmentAdjustments uint64 `json:"alignment_adjustments"`
	AllocationFailures   uint64 `json:"allocation_failures"`
}

type lockInfo struct {
	locked   bool
	handle   uint32
	physBase uint64
}

type pool struct {
	index int
	state State
	block *mem.Block // raw provider block, owned

	start uint64 // CPU address of the usable region
	size  uint64
	data  []byte // usable region
	lock  lockInfo

	free []FreeBlock
	live map[uint64]uint64 // outstanding allocations, offset -> size

	allocated uint64
	peak      uint64
	counters  Counters
}

// deviceBase returns the address hardware uses for offset 0.
func (p *pool) deviceBase() uint64 {
	if p.lock.locked {
		return p.lock.physBase
	}
	return p.start
}

// take carves size bytes aligned on the device address out of the best-fit
// free block and returns the offset. ok is false when nothing fits.
func (p *pool) take(size, align, g uint64) (off uint64, ok bool) {
	base := p.deviceBase()
	best := -1
	var bestStart uint64
	for i, fb := range p.free {
		dev := base + fb.Offset
		start := format.AlignUp(dev, align)
		if start-dev+size > fb.Size {
			continue
		}
		if boundary.Crosses(start, size, g) {
			p.counters.BoundaryViolations++
			continue
		}
		if best < 0 || fb.Size < p.free[best].Size {
			best, bestStart = i, start
		}
	}
	if best < 0 {
		p.counters.AllocationFailures++
		return 0, false
	}

	fb := p.free[best]
	pad := bestStart - (base + fb.Offset)
	off = fb.Offset + pad
	rest := fb.Size - pad - size

	repl := make([]FreeBlock, 0, 2)
	if pad > 0 {
		repl = append(repl, FreeBlock{Offset: fb.Offset, Size: pad})
		p.counters.AlignmentAdjustments++
	}
	if rest > 0 {
		repl = append(repl, FreeBlock{Offset: off + size, Size: rest})
	}
	p.free = slices.Replace(p.free, best, best+1, repl...)

	p.live[off] = size
	p.allocated += size
	p.peak = max(p.peak, p.allocated)
	return off, true
}

// release returns [off, off+size) to the free list.
func (p *pool) release(off, size uint64, coalesce bool) {
	delete(p.live, off)
	p.free = slices.Insert(p.free, 0, FreeBlock{Offset: off, Size: size})
	p.allocated -= size
	if coalesce {
		p.coalesce()
	}
}

func byOffset(a, b FreeBlock) int {
	return cmp.Compare(a.Offset, b.Offset)
}

// coalesce sorts the free list by offset and merges touching blocks.
func (p *pool) coalesce() {
	slices.SortFunc(p.free, byOffset)
	out := p.free[:0]
	for _, fb := range p.free {
		if n := len(out); n > 0 && out[n-1].Offset+out[n-1].Size == fb.Offset {
			out[n-1].Size += fb.Size
			continue
		}
		out = append(out, fb)
	}
	p.free = out
}

func (p *pool) largestFree() uint64 {
	var m uint64
	for _, fb := range p.free {
		m = max(m, fb.Size)
	}
	return m
}

func (p *pool) utilization() float64 {
	if p.size == 0 {
		return 0
	}
	return float64(p.allocated) * 100 / float64(p.size)
}
