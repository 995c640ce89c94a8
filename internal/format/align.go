package format

// Alignment utilities. All alignments handled here are powers of two; callers
// check with IsPowerOfTwo before relying on the mask arithmetic.

// IsPowerOfTwo reports whether n is a nonzero power of two.
//
// Example:
//
//	IsPowerOfTwo(0)   = false
//	IsPowerOfTwo(16)  = true
//	IsPowerOfTwo(24)  = false
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align. align must be a
// power of two; zero and one leave n unchanged.
//
// Example:
//
//	AlignUp(1, 16)   = 16
//	AlignUp(16, 16)  = 16
//	AlignUp(17, 256) = 256
func AlignUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align.
func AlignDown(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return n &^ (align - 1)
}

// Align16 returns n aligned up to the next 16-byte boundary.
//
// Example:
//
//	Align16(1)  = 16
//	Align16(16) = 16
//	Align16(17) = 32
func Align16(n int) int {
	return (n + DefaultAlignment - 1) &^ (DefaultAlignment - 1)
}

// IsAligned reports whether n is a multiple of align.
func IsAligned(n, align uint64) bool {
	if align <= 1 {
		return true
	}
	return n&(align-1) == 0
}
