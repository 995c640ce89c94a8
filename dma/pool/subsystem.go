package pool

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/dma/dmalog"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/buf"
	"github.com/joshuapare/nicdma/internal/format"
)

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithLogger sets the logger; the default is the dmalog logger named "pool".
func WithLogger(l *zap.Logger) Option {
	return func(s *Subsystem) {
		s.logger = l
	}
}

// Subsystem owns a fixed set of boundary-safe pools.
type Subsystem struct {
	cfg      Config
	provider mem.Provider
	locker   mem.Locker
	logger   *zap.Logger

	state State
	pools []*pool

	allocs       uint64
	frees        uint64
	failedAllocs uint64
}

// Allocation is a boundary-safe buffer handed out by Alloc. It stays valid
// until passed to Free.
type Allocation struct {
	DeviceAddr uint64 // address to program into the NIC
	HostAddr   uint64 // CPU-visible address
	Size       uint64
	Offset     uint64 // offset within the owning pool's usable region

	owner *Subsystem
	pool  int
	data  []byte
}

// Valid reports whether a is live.
func (a *Allocation) Valid() bool {
	return a != nil && a.owner != nil
}

// Pool returns the index of the owning pool.
func (a *Allocation) Pool() int {
	return a.pool
}

// Bytes returns the CPU view of the allocation. It is nil once freed.
func (a *Allocation) Bytes() []byte {
	return a.data
}

// New creates the pools described by cfg. provider supplies raw memory;
// locker may be nil, in which case every pool uses identity addressing.
func New(cfg Config, provider mem.Provider, locker mem.Locker, opts ...Option) (*Subsystem, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("pool: nil provider: %w", ErrNoPools)
	}

	s := &Subsystem{cfg: cfg, provider: provider, locker: locker}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = dmalog.Adjust(s.logger, "pool")

	for i, size := range cfg.Sizes {
		p, err := s.initPool(i, size)
		if err != nil {
			s.logger.Warn("pool init failed",
				zap.Int("pool", i),
				zap.Uint64("size", size),
				zap.Error(err))
			continue
		}
		s.pools = append(s.pools, p)
	}
	if len(s.pools) == 0 {
		s.logger.Error("no DMA pools initialized", zap.Int("configured", len(cfg.Sizes)))
		return nil, ErrNoPools
	}

	s.state = StateActive
	s.logger.Info("DMA pool subsystem ready",
		zap.Int("pools", len(s.pools)),
		zap.Int("configured", len(cfg.Sizes)))
	return s, nil
}

func (s *Subsystem) initPool(index int, size uint64) (*pool, error) {
	g := s.cfg.Boundary
	raw := size + g + s.cfg.StrictAlignment
	blk, err := s.provider.Allocate(int(raw))
	if err != nil {
		return nil, fmt.Errorf("allocate %d raw bytes: %w", raw, err)
	}

	res, err := boundary.FindSafeStart(boundary.Search{
		Start:     blk.Addr,
		End:       blk.Addr + blk.Size(),
		Size:      size,
		Alignment: s.cfg.StrictAlignment,
		Boundary:  g,
	})
	if err != nil {
		if rerr := s.provider.Release(blk); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}

	data, ok := buf.Slice(blk.Data, res.Addr-blk.Addr, size)
	if !ok {
		err := fmt.Errorf("pool region %#x+%d outside %d-byte block: %w", res.Addr, size, len(blk.Data), ErrCorrupt)
		if rerr := s.provider.Release(blk); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, err
	}
	p := &pool{
		index: index,
		state: StateActive,
		block: blk,
		start: res.Addr,
		size:  size,
		data:  data,
		free:  []FreeBlock{{Offset: 0, Size: size}},
		live:  make(map[uint64]uint64),
	}
	s.lockPool(p)

	s.logger.Info("DMA pool initialized",
		zap.Int("pool", index),
		zap.Uint64("size", size),
		zap.Uint64("host", p.start),
		zap.Uint64("device", p.deviceBase()),
		zap.Bool("locked", p.lock.locked))
	return p, nil
}

// lockPool asks the locker to pin p. Any failure leaves p on identity addressing.
func (s *Subsystem) lockPool(p *pool) {
	if s.locker == nil {
		s.logger.Warn("no address-locking service, using identity addressing", zap.Int("pool", p.index))
		return
	}
	lk, err := s.locker.Lock(mem.Region{Addr: p.start, Size: p.size, Data: p.data}, mem.LockContiguous|mem.LockNoBoundaryCross)
	if err == nil && boundary.Crosses(lk.PhysBase, p.size, s.cfg.Boundary) {
		if uerr := s.locker.Unlock(lk.Handle); uerr != nil {
			s.logger.Warn("unlock after unsafe lock failed", zap.Int("pool", p.index), zap.Error(uerr))
		}
		err = fmt.Errorf("phys %#x+%d: %w", lk.PhysBase, p.size, ErrUnsafeLock)
	}
	if err != nil {
		s.logger.Warn("address lock failed, using identity addressing", zap.Int("pool", p.index), zap.Error(err))
		return
	}
	p.lock = lockInfo{locked: true, handle: lk.Handle, physBase: lk.PhysBase}
}

// Alloc returns size bytes aligned to alignment on the device address.
// alignment 0 selects the configured default. The returned range never
// straddles the boundary granularity.
func (s *Subsystem) Alloc(size, alignment uint64) (*Allocation, error) {
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	if size == 0 {
		return nil, ErrZeroSize
	}
	if size > s.cfg.MaxAlloc || size >= s.cfg.Boundary {
		s.logger.Debug("allocation too large", zap.Uint64("size", size), zap.Uint64("max", s.cfg.MaxAlloc))
		return nil, fmt.Errorf("%d bytes: %w", size, ErrTooLarge)
	}
	if alignment == 0 {
		alignment = s.cfg.DefaultAlignment
	}
	if !format.IsPowerOfTwo(alignment) {
		return nil, fmt.Errorf("alignment %d: %w", alignment, ErrBadAlignment)
	}

	size = format.AlignUp(size, alignment)
	if size > s.cfg.MaxAlloc || size >= s.cfg.Boundary {
		return nil, fmt.Errorf("%d bytes after alignment to %d: %w", size, alignment, ErrTooLarge)
	}

	for _, p := range s.pools {
		if p.state != StateActive {
			continue
		}
		off, ok := p.take(size, alignment, s.cfg.Boundary)
		if !ok {
			continue
		}
		data, ok := buf.Slice(p.data, off, size)
		if !ok {
			p.release(off, size, s.cfg.Coalesce)
			return nil, fmt.Errorf("pool %d offset %d size %d: %w", p.index, off, size, ErrCorrupt)
		}
		s.allocs++
		return &Allocation{
			DeviceAddr: p.deviceBase() + off,
			HostAddr:   p.start + off,
			Size:       size,
			Offset:     off,
			owner:      s,
			pool:       p.index,
			data:       data,
		}, nil
	}

	s.failedAllocs++
	s.logger.Warn("DMA allocation failed",
		zap.Uint64("size", size),
		zap.Uint64("align", alignment))
	return nil, fmt.Errorf("%d bytes aligned %d: %w", size, alignment, ErrExhausted)
}

// Free returns a to its pool and clears it.
func (s *Subsystem) Free(a *Allocation) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	if !a.Valid() || a.owner != s {
		return ErrInvalidAllocation
	}
	p := s.poolByIndex(a.pool)
	if p == nil || p.state != StateActive {
		return fmt.Errorf("pool %d: %w", a.pool, ErrNotActive)
	}
	if size, ok := p.live[a.Offset]; !ok || size != a.Size {
		s.logger.Warn("free of unknown allocation",
			zap.Int("pool", a.pool),
			zap.Uint64("offset", a.Offset),
			zap.Uint64("size", a.Size))
		return fmt.Errorf("pool %d offset %d: %w", a.pool, a.Offset, ErrInvalidAllocation)
	}

	p.release(a.Offset, a.Size, s.cfg.Coalesce)
	s.frees++
	*a = Allocation{}
	return nil
}

func (s *Subsystem) poolByIndex(index int) *pool {
	for _, p := range s.pools {
		if p.index == index {
			return p
		}
	}
	return nil
}

// Shutdown unlocks and releases every pool. The subsystem cannot be used afterwards.
func (s *Subsystem) Shutdown() error {
	if s.state != StateActive {
		return ErrNotActive
	}
	var errs []error
	for _, p := range s.pools {
		if p.lock.locked {
			if err := s.locker.Unlock(p.lock.handle); err != nil {
				s.logger.Warn("unlock failed", zap.Int("pool", p.index), zap.Error(err))
				errs = append(errs, fmt.Errorf("pool %d unlock: %w", p.index, err))
			}
			p.lock = lockInfo{}
		}
		if err := s.provider.Release(p.block); err != nil {
			s.logger.Warn("release failed", zap.Int("pool", p.index), zap.Error(err))
			errs = append(errs, fmt.Errorf("pool %d release: %w", p.index, err))
		}
		p.block, p.data, p.free, p.live = nil, nil, nil, nil
		p.allocated = 0
		p.state = StateDestroyed
	}
	s.pools = nil
	s.allocs, s.frees, s.failedAllocs = 0, 0, 0
	s.state = StateDestroyed
	s.logger.Info("DMA pool subsystem shut down")
	return errors.Join(errs...)
}

// Config returns the effective configuration.
func (s *Subsystem) Config() Config {
	return s.cfg
}

// State returns the subsystem lifecycle stage.
func (s *Subsystem) State() State {
	return s.state
}
