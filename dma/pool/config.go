package pool

import (
	"fmt"

	"github.com/joshuapare/nicdma/internal/format"
)

// Config controls pool geometry and allocation limits. Zero fields take the
// defaults from DefaultConfig.
type Config struct {
	// Sizes are the usable sizes of the pools, in scan order.
	Sizes []uint64 `json:"sizes" yaml:"sizes"`

	// Boundary is the granularity G no allocation may straddle.
	Boundary uint64 `json:"boundary" yaml:"boundary"`

	// StrictAlignment aligns each pool's usable region.
	StrictAlignment uint64 `json:"strict_alignment" yaml:"strict_alignment"`

	// DefaultAlignment applies when Alloc is called with alignment 0.
	DefaultAlignment uint64 `json:"default_alignment" yaml:"default_alignment"`

	// MaxAlloc is the largest single request accepted.
	MaxAlloc uint64 `json:"max_alloc" yaml:"max_alloc"`

	// FragmentationThreshold is the free-list length above which HealthCheck
	// reports a pool as fragmented.
	FragmentationThreshold int `json:"fragmentation_threshold" yaml:"fragmentation_threshold"`

	// Coalesce merges adjacent free blocks on Free. Off by default.
	Coalesce bool `json:"coalesce" yaml:"coalesce"`
}

// DefaultConfig returns the standard four-pool layout.
func DefaultConfig() Config {
	sizes := make([]uint64, len(format.DefaultPoolSizes))
	for i, s := range format.DefaultPoolSizes {
		sizes[i] = uint64(s)
	}
	return Config{
		Sizes:                  sizes,
		Boundary:               format.Boundary64K,
		StrictAlignment:        format.StrictAlignment,
		DefaultAlignment:       format.DefaultAlignment,
		MaxAlloc:               format.MaxSingleAlloc,
		FragmentationThreshold: format.FragmentationThreshold,
	}
}

// WithDefaults returns c with zero fields filled in.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if len(c.Sizes) == 0 {
		c.Sizes = d.Sizes
	}
	if c.Boundary == 0 {
		c.Boundary = d.Boundary
	}
	if c.StrictAlignment == 0 {
		c.StrictAlignment = d.StrictAlignment
	}
	if c.DefaultAlignment == 0 {
		c.DefaultAlignment = d.DefaultAlignment
	}
	if c.MaxAlloc == 0 {
		c.MaxAlloc = d.MaxAlloc
	}
	if c.FragmentationThreshold == 0 {
		c.FragmentationThreshold = d.FragmentationThreshold
	}
	return c
}

// Validate reports configuration that can never produce a working pool.
func (c Config) Validate() error {
	if !format.IsPowerOfTwo(c.Boundary) {
		return fmt.Errorf("pool: boundary %d is not a power of two", c.Boundary)
	}
	if !format.IsPowerOfTwo(c.StrictAlignment) {
		return fmt.Errorf("pool: strict alignment %d is not a power of two", c.StrictAlignment)
	}
	if !format.IsPowerOfTwo(c.DefaultAlignment) {
		return fmt.Errorf("pool: default alignment %d is not a power of two", c.DefaultAlignment)
	}
	if c.MaxAlloc == 0 {
		return fmt.Errorf("pool: max alloc must be positive")
	}
	if c.FragmentationThreshold < 0 {
		return fmt.Errorf("pool: fragmentation threshold %d is negative", c.FragmentationThreshold)
	}
	for i, s := range c.Sizes {
		if s == 0 {
			return fmt.Errorf("pool: size %d is zero", i)
		}
	}
	return nil
}
