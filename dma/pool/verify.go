package pool

import (
	"errors"
	"fmt"
	"slices"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/internal/buf"
)

// Verify checks every active pool's invariants and returns all violations
// joined, or nil.
func (s *Subsystem) Verify() error {
	var errs []error
	for _, p := range s.pools {
		if p.state != StateActive {
			continue
		}
		errs = append(errs, p.verify(s.cfg.Boundary)...)
	}
	return errors.Join(errs...)
}

func (p *pool) verify(g uint64) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("pool %d: %s: %w", p.index, fmt.Sprintf(format, args...), ErrCorrupt))
	}

	if boundary.Crosses(p.start, p.size, g) {
		fail("host region %#x+%d crosses boundary", p.start, p.size)
	}
	if boundary.Crosses(p.deviceBase(), p.size, g) {
		fail("device region %#x+%d crosses boundary", p.deviceBase(), p.size)
	}

	var freeSum, liveSum uint64
	ranges := make([]FreeBlock, 0, len(p.free)+len(p.live))
	for _, fb := range p.free {
		if fb.Size == 0 {
			fail("zero-size free block at %d", fb.Offset)
		}
		if !buf.Contains(0, p.size, fb.Offset, fb.Size) {
			fail("free block %d+%d out of bounds", fb.Offset, fb.Size)
		}
		freeSum += fb.Size
		ranges = append(ranges, fb)
	}
	for off, size := range p.live {
		if boundary.Crosses(p.deviceBase()+off, size, g) {
			fail("allocation %d+%d crosses boundary", off, size)
		}
		if !buf.Has(p.data, off, size) {
			fail("allocation %d+%d outside pool memory", off, size)
		}
		liveSum += size
		ranges = append(ranges, FreeBlock{Offset: off, Size: size})
	}
	if liveSum != p.allocated {
		fail("live allocations total %d, allocated is %d", liveSum, p.allocated)
	}
	if freeSum+p.allocated != p.size {
		fail("free %d + allocated %d != size %d", freeSum, p.allocated, p.size)
	}

	slices.SortFunc(ranges, byOffset)
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if buf.Overlaps(prev.Offset, prev.Size, cur.Offset, cur.Size) {
			fail("ranges %d+%d and %d+%d overlap", prev.Offset, prev.Size, cur.Offset, cur.Size)
		}
	}
	return errs
}
