package ring

import (
	"fmt"

	"github.com/joshuapare/nicdma/dma/caps"
	"github.com/joshuapare/nicdma/internal/format"
)

// Config sizes the per-device ring pair.
type Config struct {
	LargeCount int    `json:"large_count" yaml:"large_count"`
	LargeSize  uint64 `json:"large_size" yaml:"large_size"`
	SmallCount int    `json:"small_count" yaml:"small_count"`
	SmallSize  uint64 `json:"small_size" yaml:"small_size"`

	// Boundary is the granularity no slot may straddle; 0 disables the check.
	Boundary uint64 `json:"boundary" yaml:"boundary"`
	// Alignment applies to every slot's device address.
	Alignment uint64 `json:"alignment" yaml:"alignment"`

	// RetryUnit is added to the request on every retry.
	RetryUnit  uint64 `json:"retry_unit" yaml:"retry_unit"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`

	MaxDevices int `json:"max_devices" yaml:"max_devices"`
	// AddressLimit, when nonzero, is the first device address the NIC cannot reach.
	AddressLimit uint64 `json:"address_limit" yaml:"address_limit"`
}

// DefaultConfig returns the standard geometry: 32 large slots and 16 small
// slots per device, 64 KiB boundary, 16-byte alignment.
func DefaultConfig() Config {
	return Config{
		LargeCount: format.LargeRingCount,
		LargeSize:  format.LargeBufferSize,
		SmallCount: format.SmallRingCount,
		SmallSize:  format.SmallBufferSize,
		Boundary:   format.Boundary64K,
		Alignment:  format.DefaultAlignment,
		RetryUnit:  format.RingRetryUnit,
		MaxRetries: format.RingMaxRetries,
		MaxDevices: format.MaxDevices,
	}
}

// ConfigFor derives a ring configuration from a device's capabilities: the
// device's boundary rule, buffer alignment and address reach.
func ConfigFor(c caps.Capabilities) Config {
	cfg := DefaultConfig()
	cfg.Boundary = c.EffectiveBoundary()
	if c.Alignment > cfg.Alignment {
		cfg.Alignment = c.Alignment
	}
	cfg.AddressLimit = c.AddressLimit()
	return cfg
}

// Validate reports geometry that can never be laid out.
func (c Config) Validate() error {
	if c.LargeCount <= 0 || c.SmallCount <= 0 {
		return fmt.Errorf("ring: slot counts must be positive (large=%d, small=%d)", c.LargeCount, c.SmallCount)
	}
	if c.SmallSize == 0 || c.LargeSize < c.SmallSize {
		return fmt.Errorf("ring: need 0 < small size %d <= large size %d", c.SmallSize, c.LargeSize)
	}
	if c.Boundary != 0 {
		if !format.IsPowerOfTwo(c.Boundary) {
			return fmt.Errorf("ring: boundary %d is not a power of two", c.Boundary)
		}
		if c.LargeSize >= c.Boundary {
			return fmt.Errorf("ring: large size %d must be below boundary %d", c.LargeSize, c.Boundary)
		}
	}
	if c.Alignment != 0 && !format.IsPowerOfTwo(c.Alignment) {
		return fmt.Errorf("ring: alignment %d is not a power of two", c.Alignment)
	}
	if c.RetryUnit == 0 || c.MaxRetries <= 0 {
		return fmt.Errorf("ring: retry unit %d and max retries %d must be positive", c.RetryUnit, c.MaxRetries)
	}
	if c.MaxDevices <= 0 {
		return fmt.Errorf("ring: max devices %d must be positive", c.MaxDevices)
	}
	return nil
}
