// Package config loads the DMA subsystem configuration from JSON or YAML and
// turns it into the collaborators the pool and ring packages need.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/nicdma/dma/caps"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/dma/pool"
	"github.com/joshuapare/nicdma/dma/ring"
	"github.com/joshuapare/nicdma/internal/format"
)

// EnvConfigFile names the environment variable consulted when Load gets an empty path.
const EnvConfigFile = "NICDMA_CONFIG_FILE"

// Provider and locker kinds.
const (
	ProviderSim  = "sim"
	ProviderMmap = "mmap"

	LockerNone  = "none"
	LockerSim   = "sim"
	LockerMlock = "mlock"
)

// Format is a configuration encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// Memory selects and parameterizes the raw memory provider and locker.
type Memory struct {
	Provider string `json:"provider" yaml:"provider"`
	// Base and Limit bound the simulated arena.
	Base  uint64 `json:"base" yaml:"base"`
	Limit uint64 `json:"limit" yaml:"limit"`
	// PhysOffset is added to simulated CPU addresses to form provider physical addresses.
	PhysOffset uint64 `json:"phys_offset" yaml:"phys_offset"`

	Locker string `json:"locker" yaml:"locker"`
	// LockDelta is the translation applied by the simulated locker.
	LockDelta uint64 `json:"lock_delta" yaml:"lock_delta"`
}

// Config is the whole subsystem configuration.
type Config struct {
	// Device, when set, must name a registry entry; its capabilities shape the rings.
	Device  string      `json:"device,omitempty" yaml:"device,omitempty"`
	Verbose bool        `json:"verbose" yaml:"verbose"`
	Pool    pool.Config `json:"pool" yaml:"pool"`
	Ring    ring.Config `json:"ring" yaml:"ring"`
	Memory  Memory      `json:"memory" yaml:"memory"`
}

// Default returns the built-in configuration: the standard pools and rings
// over a simulated conventional-memory arena below the ISA limit.
func Default() *Config {
	return &Config{
		Pool: pool.DefaultConfig(),
		Ring: ring.DefaultConfig(),
		Memory: Memory{
			Provider: ProviderSim,
			Base:     0x10000,
			Limit:    format.ISALimit,
			Locker:   LockerSim,
		},
	}
}

// DetectFormat picks the encoding from a file extension; anything but
// .yaml/.yml is JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Unmarshal decodes data over cfg.
func Unmarshal(data []byte, cfg *Config, f Format) error {
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", err)
		}
	}
	return nil
}

// Marshal encodes cfg.
func Marshal(cfg *Config, f Format) ([]byte, error) {
	if f == FormatYAML {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// Load reads path over the defaults. An empty path falls back to
// $NICDMA_CONFIG_FILE, and to the defaults alone when that is unset too.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Unmarshal(data, cfg, DetectFormat(path)); err != nil {
			return nil, err
		}
	}
	cfg.Pool = cfg.Pool.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pool.WithDefaults().Validate(); err != nil {
		return err
	}
	if err := c.Ring.Validate(); err != nil {
		return err
	}
	if c.Device != "" {
		if _, err := caps.Lookup(c.Device); err != nil {
			return fmt.Errorf("config: device: %w", err)
		}
	}
	switch c.Memory.Provider {
	case ProviderSim:
		if c.Memory.Limit <= c.Memory.Base {
			return fmt.Errorf("config: memory limit %#x must be above base %#x", c.Memory.Limit, c.Memory.Base)
		}
	case ProviderMmap:
	default:
		return fmt.Errorf("config: unknown memory provider %q", c.Memory.Provider)
	}
	switch c.Memory.Locker {
	case LockerNone, LockerSim, LockerMlock, "":
	default:
		return fmt.Errorf("config: unknown locker %q", c.Memory.Locker)
	}
	return nil
}

// RingConfig returns the ring configuration, narrowed by the device's
// capabilities when Device is set.
func (c *Config) RingConfig() ring.Config {
	rc := c.Ring
	if c.Device == "" {
		return rc
	}
	dc, err := caps.Lookup(c.Device)
	if err != nil {
		return rc
	}
	derived := ring.ConfigFor(dc)
	rc.Boundary = derived.Boundary
	rc.Alignment = max(rc.Alignment, derived.Alignment)
	rc.AddressLimit = derived.AddressLimit
	return rc
}

// NewProvider builds the configured raw memory provider.
func (c *Config) NewProvider() mem.Provider {
	if c.Memory.Provider == ProviderMmap {
		return mem.NewMmapProvider()
	}
	p := mem.NewSimProvider(c.Memory.Base, c.Memory.Limit)
	p.PhysOffset = c.Memory.PhysOffset
	return p
}

// NewLocker builds the configured address-locking service, or nil for none.
func (c *Config) NewLocker() mem.Locker {
	switch c.Memory.Locker {
	case LockerSim:
		return mem.NewSimLocker(c.Memory.LockDelta)
	case LockerMlock:
		return mem.NewMlockLocker()
	default:
		return nil
	}
}
