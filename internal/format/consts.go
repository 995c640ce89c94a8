// Package format holds the hardware constants shared by the DMA packages:
// the physical boundary that bus-master transfers must not straddle, the ISA
// address limit, allocator alignments, and the default pool and ring
// geometry. Keeping them in one place lets the allocator, the ring manager
// and the capability registry agree on the same numbers.
package format

const (
	// Boundary64K is the physical boundary a single DMA transfer must never
	// straddle. The legacy DMA controller's address counter wraps at 64 KiB.
	Boundary64K = 0x10000

	// Boundary64KMask is the bitmask for the offset within a 64 KiB window (Boundary64K - 1).
	Boundary64KMask = Boundary64K - 1

	// ISALimit is the first physical address an ISA bus master cannot reach
	// (24 address lines).
	ISALimit = 0x1000000

	// AddressWidthISA and AddressWidthPCI are the only address widths the
	// supported NICs implement.
	AddressWidthISA = 24
	AddressWidthPCI = 32

	// Paragraph is the allocation granularity of conventional memory.
	Paragraph = 16
)

// Allocator alignments and limits.
const (
	// DefaultAlignment is applied when a caller passes alignment 0.
	DefaultAlignment = 16

	// StrictAlignment is the alignment of each pool's usable region start.
	StrictAlignment = 256

	// DescriptorAlignment is the alignment required for descriptor rings.
	DescriptorAlignment = 32

	// MaxSingleAlloc is the largest request the pool allocator accepts.
	MaxSingleAlloc = 8192

	// MaxAlignment is the largest buffer alignment a device may declare.
	MaxAlignment = 128

	// MaxCopyBreak is the upper bound on rx/tx copy-break thresholds.
	MaxCopyBreak = 2048

	// MaxSegmentSize is the upper bound on a device's maximum DMA segment.
	MaxSegmentSize = 1 << 20

	// MaxSGEntries is the largest scatter-gather list any device supports.
	MaxSGEntries = 8

	// FragmentationThreshold is the free-list length above which a pool is
	// reported as fragmented.
	FragmentationThreshold = 20

	// HighUtilizationPercent is the utilization above which a pool is
	// reported as nearly full.
	HighUtilizationPercent = 90
)

// DefaultPoolSizes are the usable sizes of the pools created at init, in
// scan order.
var DefaultPoolSizes = []int{32768, 16384, 8192, 4096}

// Ring geometry.
const (
	// MinFrame and MaxFrame bound the Ethernet frames the NICs transfer.
	MinFrame = 60
	MaxFrame = 1536

	// LargeBufferSize is the slot size of a large ring (frame plus slack).
	LargeBufferSize = 1600

	// SmallBufferSize is the slot size of a small ring. Frames up to this
	// size are copied into a small buffer.
	SmallBufferSize = 256

	// LargeRingCount and SmallRingCount are the slot counts of the per-device rings.
	LargeRingCount = 32
	SmallRingCount = 16

	// RingRetryUnit is how much a ring allocation request grows per retry.
	RingRetryUnit = 4096

	// RingMaxRetries bounds the number of ring allocation attempts.
	RingMaxRetries = 16

	// MaxDevices is the number of NIC indices a ring manager tracks by default.
	MaxDevices = 4
)
