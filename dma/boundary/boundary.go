package boundary

import (
	"errors"
	"fmt"

	"github.com/joshuapare/nicdma/internal/buf"
	"github.com/joshuapare/nicdma/internal/format"
)

var (
	// ErrNoSafeStart indicates no aligned start in the block keeps the range inside one window.
	ErrNoSafeStart = errors.New("boundary: no safe start in block")

	// ErrTooManySegments indicates a transfer needs more segments than the device supports.
	ErrTooManySegments = errors.New("boundary: too many segments")

	// ErrBadGranularity indicates a granularity or alignment that is not a power of two.
	ErrBadGranularity = errors.New("boundary: granularity must be a power of two")
)

// Crosses reports whether [addr, addr+size) straddles a multiple of g.
// Any size of at least g is treated as crossing, even when it would fit an
// aligned window exactly. Empty ranges and g == 0 never cross.
func Crosses(addr, size, g uint64) bool {
	if g == 0 || size == 0 {
		return false
	}
	if size >= g {
		return true
	}
	last, ok := buf.AddOverflowSafe(addr, size-1)
	if !ok {
		return true
	}
	return addr/g != last/g
}

// NextBoundary returns the smallest multiple of g strictly greater than addr.
func NextBoundary(addr, g uint64) uint64 {
	if g == 0 {
		return addr
	}
	return format.AlignDown(addr, g) + g
}

// Search describes one FindSafeStart query.
type Search struct {
	Start     uint64 // first usable address
	End       uint64 // exclusive end of the block
	Size      uint64 // bytes that must stay inside one window
	Alignment uint64 // power of two; 0 or 1 means unaligned
	Boundary  uint64 // power of two; 0 disables the check
}

// Result is a successful FindSafeStart outcome.
type Result struct {
	Addr uint64
	// Adjustments counts how many times the candidate had to skip past a boundary.
	Adjustments int
}

// FindSafeStart returns the lowest aligned address a in [s.Start, s.End) such
// that [a, a+s.Size) fits before s.End and does not cross s.Boundary.
//
// The candidate begins at the aligned block start. Whenever the candidate
// range straddles a boundary it moves to the aligned address just past the
// next boundary. The loop ends when a candidate fits or runs off the block.
func FindSafeStart(s Search) (Result, error) {
	if s.Alignment > 1 && !format.IsPowerOfTwo(s.Alignment) {
		return Result{}, fmt.Errorf("alignment %d: %w", s.Alignment, ErrBadGranularity)
	}
	if s.Boundary != 0 && !format.IsPowerOfTwo(s.Boundary) {
		return Result{}, fmt.Errorf("boundary %d: %w", s.Boundary, ErrBadGranularity)
	}
	if s.Boundary != 0 && s.Size >= s.Boundary {
		return Result{}, fmt.Errorf("size %d >= boundary %d: %w", s.Size, s.Boundary, ErrNoSafeStart)
	}

	var res Result
	cand := format.AlignUp(s.Start, s.Alignment)
	for {
		end, ok := buf.AddOverflowSafe(cand, s.Size)
		if !ok || end > s.End || cand < s.Start {
			return Result{}, fmt.Errorf("block [%#x,%#x) size %d: %w", s.Start, s.End, s.Size, ErrNoSafeStart)
		}
		if !Crosses(cand, s.Size, s.Boundary) {
			res.Addr = cand
			return res, nil
		}
		cand = format.AlignUp(NextBoundary(cand, s.Boundary), s.Alignment)
		res.Adjustments++
	}
}

// Segment is one scatter-gather fragment.
type Segment struct {
	Addr uint64
	Size uint64
}

// Split cuts [addr, addr+size) at every multiple of g so that no segment
// straddles a boundary. maxSegments bounds the result; 0 means unbounded.
func Split(addr, size, g uint64, maxSegments int) ([]Segment, error) {
	if size == 0 {
		return nil, nil
	}
	if g != 0 && !format.IsPowerOfTwo(g) {
		return nil, fmt.Errorf("boundary %d: %w", g, ErrBadGranularity)
	}
	if _, err := buf.End(addr, size); err != nil {
		return nil, err
	}
	if g == 0 {
		return []Segment{{Addr: addr, Size: size}}, nil
	}

	var segs []Segment
	cur, remaining := addr, size
	for remaining > 0 {
		n := min(NextBoundary(cur, g)-cur, remaining)
		segs = append(segs, Segment{Addr: cur, Size: n})
		if maxSegments > 0 && len(segs) > maxSegments {
			return nil, fmt.Errorf("%d bytes at %#x need more than %d: %w", size, addr, maxSegments, ErrTooManySegments)
		}
		cur += n
		remaining -= n
	}
	return segs, nil
}
