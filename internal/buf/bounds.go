package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uint64.
// This is essential for count * slotSize calculations when sizing rings.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// End returns addr+size, the exclusive end of an address range, or an error
// when the range wraps the address space.
func End(addr, size uint64) (uint64, error) {
	end, ok := AddOverflowSafe(addr, size)
	if !ok {
		return 0, fmt.Errorf("overflow: addr=%#x + size=%d", addr, size)
	}
	return end, nil
}

// CheckArrayBounds validates that count elements of elementSize bytes fit in
// a region of regionSize bytes starting at offset. Returns the end offset if
// valid, or an error describing the specific failure (overflow or out of
// bounds).
//
// Ring initialization uses it before laying out slots:
//
//	end, err := buf.CheckArrayBounds(blockSize, off, count, slotSize)
//	if err != nil {
//	    return fmt.Errorf("ring: %w", err)
//	}
func CheckArrayBounds(regionSize, offset, count, elementSize uint64) (uint64, error) {
	total, ok := MulOverflowSafe(count, elementSize)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * elemSize=%d", count, elementSize)
	}
	end, ok := AddOverflowSafe(offset, total)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, total)
	}
	if end > regionSize {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, regionSize)
	}
	return end, nil
}

// Contains reports whether [addr, addr+size) lies entirely within
// [base, base+length).
func Contains(base, length, addr, size uint64) bool {
	if addr < base {
		return false
	}
	end, ok := AddOverflowSafe(addr, size)
	if !ok {
		return false
	}
	limit, ok := AddOverflowSafe(base, length)
	if !ok {
		return false
	}
	return end <= limit
}

// Overlaps reports whether [a, a+aSize) and [b, b+bSize) share any byte.
// Empty ranges never overlap.
func Overlaps(a, aSize, b, bSize uint64) bool {
	if aSize == 0 || bSize == 0 {
		return false
	}
	return a < b+bSize && b < a+aSize
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n uint64) ([]byte, bool) {
	if off > uint64(len(b)) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > uint64(len(b)) {
		return nil, false
	}
	return b[off:end:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n uint64) bool {
	_, ok := Slice(b, off, n)
	return ok
}
