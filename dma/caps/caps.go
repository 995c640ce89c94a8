// Package caps is the registry of per-device DMA capability descriptors.
//
// The registry is a closed table compiled into the driver: capabilities are
// facts about the physical NIC and cannot be registered at runtime. Drivers
// call Lookup at configuration time, and the bring-up path calls ValidateAll
// once to fail fast on a corrupted build.
package caps

import (
	"fmt"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/internal/buf"
	"github.com/joshuapare/nicdma/internal/format"
)

// Capabilities describes what a NIC's DMA engine can and cannot do.
type Capabilities struct {
	Name                string `json:"name" yaml:"name"`
	AddressWidthBits    int    `json:"address_width_bits" yaml:"address_width_bits"`
	MaxSGEntries        int    `json:"max_sg_entries" yaml:"max_sg_entries"`
	Boundary            uint64 `json:"boundary" yaml:"boundary"`
	Alignment           uint64 `json:"alignment" yaml:"alignment"`
	DescriptorAlignment uint64 `json:"descriptor_alignment" yaml:"descriptor_alignment"`
	NeedsAddressLocking bool   `json:"needs_address_locking" yaml:"needs_address_locking"`
	RxCopyBreak         int    `json:"rx_copy_break" yaml:"rx_copy_break"`
	TxCopyBreak         int    `json:"tx_copy_break" yaml:"tx_copy_break"`
	CacheCoherent       bool   `json:"cache_coherent" yaml:"cache_coherent"`
	SupportsSG          bool   `json:"supports_sg" yaml:"supports_sg"`
	NoBoundaryCrossing  bool   `json:"no_boundary_crossing" yaml:"no_boundary_crossing"`
	MaxSegmentSize      uint64 `json:"max_segment_size" yaml:"max_segment_size"`
}

// AddressLimit returns the first physical address the device cannot reach.
func (c Capabilities) AddressLimit() uint64 {
	if c.AddressWidthBits <= 0 || c.AddressWidthBits >= 64 {
		return 0
	}
	return uint64(1) << c.AddressWidthBits
}

// Reachable reports whether the device can address every byte of [addr, addr+size).
func (c Capabilities) Reachable(addr, size uint64) bool {
	limit := c.AddressLimit()
	if limit == 0 {
		return true
	}
	return buf.Contains(0, limit, addr, size)
}

// EffectiveBoundary returns the granularity allocations for this device
// must respect, or 0 when the device tolerates crossing.
func (c Capabilities) EffectiveBoundary() uint64 {
	if !c.NoBoundaryCrossing {
		return 0
	}
	if c.Boundary == 0 {
		return format.Boundary64K
	}
	return c.Boundary
}

// MaxSegments returns how many scatter-gather fragments one descriptor may carry.
func (c Capabilities) MaxSegments() int {
	if !c.SupportsSG || c.MaxSGEntries < 1 {
		return 1
	}
	return c.MaxSGEntries
}

// Segments cuts a transfer buffer into the fragments one descriptor carries.
// Fragments never straddle the device's boundary; devices without a boundary
// rule are cut at MaxSegmentSize instead. More fragments than MaxSegments is
// boundary.ErrTooManySegments.
func (c Capabilities) Segments(addr, size uint64) ([]boundary.Segment, error) {
	if !c.Reachable(addr, size) {
		return nil, fmt.Errorf("%s: %d bytes at %#x, limit %#x: %w", c.Name, size, addr, c.AddressLimit(), ErrUnreachable)
	}
	g := c.EffectiveBoundary()
	if g == 0 && format.IsPowerOfTwo(c.MaxSegmentSize) {
		g = c.MaxSegmentSize
	}
	return boundary.Split(addr, size, g, c.MaxSegments())
}
