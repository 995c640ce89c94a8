// Package boundary implements the physical-boundary arithmetic shared by the
// pool allocator and the buffer rings.
//
// A bus-master NIC programs its DMA engine with a start address and a length.
// On the legacy hardware the address counter only carries within a window of
// size G (64 KiB), so a transfer whose range straddles a multiple of G reads
// or writes the wrong memory. Every buffer handed to hardware must therefore
// lie within a single G-aligned window.
//
// # Primitives
//
//   - Crosses reports whether [addr, addr+size) straddles a multiple of G.
//   - NextBoundary returns the first multiple of G above an address.
//   - FindSafeStart carves an aligned, non-straddling start out of a larger
//     block. Both allocators reserve slack and call it.
//   - Split cuts a transfer into boundary-respecting scatter-gather segments.
//
// A granularity of zero disables the constraint. All granularities and
// alignments must be powers of two.
package boundary
