package ring

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/dma/dmalog"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/buf"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger; the default is the dmalog logger named "ring".
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

type device struct {
	large *Ring
	small *Ring
}

// Manager owns the ring pairs of up to cfg.MaxDevices devices.
type Manager struct {
	cfg      Config
	provider mem.Provider
	logger   *zap.Logger
	devices  []*device
}

// NewManager validates cfg and returns a manager with no devices initialized.
func NewManager(cfg Config, provider mem.Provider, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.New("ring: nil provider")
	}
	m := &Manager{cfg: cfg, provider: provider, devices: make([]*device, cfg.MaxDevices)}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = dmalog.Adjust(m.logger, "ring")
	return m, nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Init builds the large and small rings for dev.
func (m *Manager) Init(dev int) error {
	if dev < 0 || dev >= len(m.devices) {
		return fmt.Errorf("device %d: %w", dev, ErrBadDevice)
	}
	if m.devices[dev] != nil {
		return fmt.Errorf("device %d: %w", dev, ErrAlreadyInitialized)
	}

	large, err := m.build(dev, ClassLarge, m.cfg.LargeCount, m.cfg.LargeSize)
	if err != nil {
		return err
	}
	small, err := m.build(dev, ClassSmall, m.cfg.SmallCount, m.cfg.SmallSize)
	if err != nil {
		if rerr := m.provider.Release(large.block); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	m.devices[dev] = &device{large: large, small: small}
	m.logger.Info("buffer rings initialized",
		zap.Int("device", dev),
		zap.Uint64("large_phys", large.slots[0].Phys),
		zap.Uint64("small_phys", small.slots[0].Phys))
	return nil
}

// build obtains a block for count slots of slotSize bytes. When the slots
// cannot be laid out without straddling the boundary, the block is released
// and the request grows by RetryUnit.
func (m *Manager) build(dev int, class Class, count int, slotSize uint64) (*Ring, error) {
	need, err := buf.CheckArrayBounds(^uint64(0), 0, uint64(count), slotSize)
	if err != nil {
		return nil, fmt.Errorf("ring: %w", err)
	}

	for attempt := range m.cfg.MaxRetries {
		req := need + uint64(attempt)*m.cfg.RetryUnit
		blk, err := m.provider.Allocate(int(req))
		if err != nil {
			m.logger.Error("ring allocation failed",
				zap.Int("device", dev),
				zap.Stringer("ring", class),
				zap.Uint64("size", req),
				zap.Error(err))
			return nil, fmt.Errorf("device %d %s ring: %w", dev, class, err)
		}
		if m.cfg.AddressLimit != 0 && !buf.Contains(0, m.cfg.AddressLimit, blk.Phys, blk.Size()) {
			err := fmt.Errorf("device %d %s ring at %#x: %w", dev, class, blk.Phys, ErrUnreachable)
			if rerr := m.provider.Release(blk); rerr != nil {
				err = errors.Join(err, rerr)
			}
			m.logger.Error("ring block unreachable",
				zap.Int("device", dev),
				zap.Stringer("ring", class),
				zap.Uint64("phys", blk.Phys),
				zap.Uint64("limit", m.cfg.AddressLimit))
			return nil, err
		}

		slots, err := m.layout(blk, count, slotSize)
		if err == nil {
			if attempt > 0 {
				m.logger.Debug("ring block boundary-safe after retry",
					zap.Int("device", dev),
					zap.Stringer("ring", class),
					zap.Int("attempt", attempt))
			}
			return &Ring{class: class, block: blk, slotSize: slotSize, slots: slots}, nil
		}
		if rerr := m.provider.Release(blk); rerr != nil {
			return nil, fmt.Errorf("device %d %s ring: %w", dev, class, rerr)
		}
		m.logger.Debug("ring block crosses boundary, retrying",
			zap.Int("device", dev),
			zap.Stringer("ring", class),
			zap.Uint64("size", req),
			zap.Int("attempt", attempt))
	}

	m.logger.Error("ring retries exhausted",
		zap.Int("device", dev),
		zap.Stringer("ring", class),
		zap.Int("retries", m.cfg.MaxRetries))
	return nil, fmt.Errorf("device %d %s ring after %d attempts: %w", dev, class, m.cfg.MaxRetries, ErrRetriesExhausted)
}

// layout packs count slots into blk in device-address order, skipping to
// the next boundary whenever a slot would straddle one.
func (m *Manager) layout(blk *mem.Block, count int, slotSize uint64) ([]Slot, error) {
	slots := make([]Slot, count)
	cursor, end := blk.Phys, blk.Phys+blk.Size()
	for i := range slots {
		res, err := boundary.FindSafeStart(boundary.Search{
			Start:     cursor,
			End:       end,
			Size:      slotSize,
			Alignment: m.cfg.Alignment,
			Boundary:  m.cfg.Boundary,
		})
		if err != nil {
			return nil, err
		}
		slots[i] = Slot{Phys: res.Addr, Host: blk.Addr + (res.Addr - blk.Phys), Size: slotSize}
		cursor = res.Addr + slotSize
	}
	return slots, nil
}

func (m *Manager) device(dev int) (*device, error) {
	if dev < 0 || dev >= len(m.devices) {
		return nil, fmt.Errorf("device %d: %w", dev, ErrBadDevice)
	}
	d := m.devices[dev]
	if d == nil {
		return nil, fmt.Errorf("device %d: %w", dev, ErrNotInitialized)
	}
	return d, nil
}

// Alloc claims a slot from the small ring when size fits a small slot and
// from the large ring otherwise. It returns the slot's device and CPU
// addresses.
func (m *Manager) Alloc(dev int, size uint64) (phys, host uint64, err error) {
	d, err := m.device(dev)
	if err != nil {
		return 0, 0, err
	}
	if size > m.cfg.LargeSize {
		return 0, 0, fmt.Errorf("%d bytes: %w", size, ErrTooLarge)
	}
	r := d.large
	if size <= m.cfg.SmallSize {
		r = d.small
	}
	s, ok := r.claim()
	if !ok {
		m.logger.Debug("ring exhausted",
			zap.Int("device", dev),
			zap.Stringer("ring", r.class),
			zap.Uint64("size", size))
		return 0, 0, fmt.Errorf("device %d %s ring: %w", dev, r.class, ErrExhausted)
	}
	return s.Phys, s.Host, nil
}

// Free releases the slot with device address phys. Addresses that belong to
// no slot, slots that are already free, and unknown devices are ignored;
// late or duplicate completions from hardware are expected. Free reports
// whether a slot was released.
func (m *Manager) Free(dev int, phys uint64) bool {
	d, err := m.device(dev)
	if err != nil {
		return false
	}
	return d.large.release(phys) || d.small.release(phys)
}

// PhysToVirt translates a slot's device address to its CPU address.
func (m *Manager) PhysToVirt(dev int, phys uint64) (uint64, bool) {
	d, err := m.device(dev)
	if err != nil {
		return 0, false
	}
	for _, r := range []*Ring{d.large, d.small} {
		if i := r.find(phys); i >= 0 {
			return r.slots[i].Host, true
		}
	}
	return 0, false
}

// Bytes returns the CPU view of the slot with device address phys.
func (m *Manager) Bytes(dev int, phys uint64) ([]byte, bool) {
	d, err := m.device(dev)
	if err != nil {
		return nil, false
	}
	for _, r := range []*Ring{d.large, d.small} {
		if i := r.find(phys); i >= 0 {
			return r.bytes(i), true
		}
	}
	return nil, false
}

// DeviceStats holds both rings of one device.
type DeviceStats struct {
	Device int   `json:"device"`
	Large  Stats `json:"large"`
	Small  Stats `json:"small"`
}

// Stats returns a snapshot of dev's rings.
func (m *Manager) Stats(dev int) (DeviceStats, error) {
	d, err := m.device(dev)
	if err != nil {
		return DeviceStats{}, err
	}
	return DeviceStats{Device: dev, Large: d.large.stats(), Small: d.small.stats()}, nil
}

// Ring returns dev's ring of the given class.
func (m *Manager) Ring(dev int, class Class) (*Ring, error) {
	d, err := m.device(dev)
	if err != nil {
		return nil, err
	}
	if class == ClassLarge {
		return d.large, nil
	}
	return d.small, nil
}

// Teardown releases dev's rings. Outstanding slots are discarded.
func (m *Manager) Teardown(dev int) error {
	d, err := m.device(dev)
	if err != nil {
		return err
	}
	m.devices[dev] = nil
	var errs []error
	for _, r := range []*Ring{d.large, d.small} {
		if r.inUse > 0 {
			m.logger.Warn("tearing down ring with outstanding slots",
				zap.Int("device", dev),
				zap.Stringer("ring", r.class),
				zap.Int("in_use", r.inUse))
		}
		if err := m.provider.Release(r.block); err != nil {
			errs = append(errs, fmt.Errorf("device %d %s ring: %w", dev, r.class, err))
		}
	}
	return errors.Join(errs...)
}

// Close tears down every initialized device.
func (m *Manager) Close() error {
	var errs []error
	for dev, d := range m.devices {
		if d == nil {
			continue
		}
		if err := m.Teardown(dev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
