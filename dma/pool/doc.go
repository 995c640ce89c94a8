// Package pool implements the boundary-safe pool allocator used for
// variable-size, long-lived DMA buffers such as descriptor rings.
//
// # Overview
//
// At init the Subsystem creates one pool per configured size (by default
// 32 KiB, 16 KiB, 8 KiB and 4 KiB). Each pool requests its size plus one
// boundary granularity plus the strict alignment from the raw memory
// provider. The slack guarantees that an aligned sub-region of the requested
// size exists that does not straddle a multiple of the granularity G;
// boundary.FindSafeStart carves it. The region is then offered to the
// address-locking service. When locking is unavailable, fails, or yields a
// physical range that straddles G, the pool uses the CPU address as the
// device address.
//
// Pools that fail to initialize are skipped. New fails only when no pool
// could be created.
//
// # Allocation
//
// Alloc scans pools in configuration order. Within a pool it picks the
// smallest free block (best fit) in which the request, aligned on its device
// address, fits without straddling G. Candidates that would straddle are
// skipped and counted as boundary violations. Alignment padding and the
// trailing remainder stay on the free list.
//
// Free prepends the released range to the free list. Adjacent free blocks
// are merged only when Config.Coalesce is set.
//
// # Invariants
//
//   - A pool's usable region never straddles G.
//   - Every returned allocation's device range never straddles G.
//   - For every pool, the sum of free block sizes plus Allocated equals the
//     pool size.
//
// Verify checks these at any time.
//
// # Concurrency
//
// A Subsystem is not safe for concurrent use. Callers confine it to one
// execution context.
package pool
