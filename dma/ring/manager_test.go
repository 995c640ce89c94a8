package ring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/dma/caps"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/format"
)

func newManager(t *testing.T, cfg Config, p *mem.SimProvider) *Manager {
	t.Helper()
	m, err := NewManager(cfg, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func assertSlotsSafe(t *testing.T, m *Manager, dev int) {
	t.Helper()
	g := m.Config().Boundary
	for _, class := range []Class{ClassLarge, ClassSmall} {
		r, err := m.Ring(dev, class)
		require.NoError(t, err)
		for i, s := range r.Slots() {
			require.False(t, boundary.Crosses(s.Phys, s.Size, g), "%s slot %d at %#x crosses", class, i, s.Phys)
			require.Zero(t, s.Phys%m.Config().Alignment)
		}
	}
}

func TestInit_PopulatesSlots(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	p.PhysOffset = 0x200000
	m := newManager(t, DefaultConfig(), p)
	require.NoError(t, m.Init(0))

	r, err := m.Ring(0, ClassLarge)
	require.NoError(t, err)
	slots := r.Slots()
	require.Len(t, slots, 32)
	for i, s := range slots {
		assert.Equal(t, slots[0].Phys+uint64(i)*1600, s.Phys)
		assert.Equal(t, slots[0].Host+uint64(i)*1600, s.Host)
		assert.Equal(t, s.Host+0x200000, s.Phys)
		assert.Equal(t, uint64(1600), s.Size)
		assert.False(t, s.InUse)
	}

	st, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, 32, st.Large.Count)
	assert.Equal(t, 16, st.Small.Count)
	assert.Zero(t, st.Large.Head)
	assert.Zero(t, st.Large.Tail)
	assertSlotsSafe(t, m, 0)
}

func TestAlloc_RingExhaustion(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(0))

	for i := range 32 {
		_, _, err := m.Alloc(0, 1500)
		require.NoError(t, err, "alloc %d", i)
	}
	_, _, err := m.Alloc(0, 1500)
	require.ErrorIs(t, err, ErrExhausted)

	st, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Large.AllocFailures)
	assert.Equal(t, uint64(32), st.Large.AllocCount)
	assert.Zero(t, st.Small.AllocFailures)
}

func TestAlloc_OnlyHeadSlotIsClaimed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LargeCount = 4
	m := newManager(t, cfg, mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(0))

	var phys []uint64
	for range 4 {
		ph, _, err := m.Alloc(0, 1000)
		require.NoError(t, err)
		phys = append(phys, ph)
	}
	// Freeing a slot other than head does not make the ring allocatable.
	require.True(t, m.Free(0, phys[2]))
	_, _, err := m.Alloc(0, 1000)
	require.ErrorIs(t, err, ErrExhausted)

	require.True(t, m.Free(0, phys[0]))
	got, _, err := m.Alloc(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, phys[0], got)
}

func TestAlloc_SizeClasses(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(1))

	small, err := m.Ring(1, ClassSmall)
	require.NoError(t, err)
	large, err := m.Ring(1, ClassLarge)
	require.NoError(t, err)

	ph, _, err := m.Alloc(1, 256)
	require.NoError(t, err)
	assert.Equal(t, small.Slots()[0].Phys, ph)

	ph, _, err = m.Alloc(1, 257)
	require.NoError(t, err)
	assert.Equal(t, large.Slots()[0].Phys, ph)

	_, _, err = m.Alloc(1, 1601)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFree_StaleAddressIsNoop(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(0))
	ph, _, err := m.Alloc(0, 1500)
	require.NoError(t, err)
	before, err := m.Stats(0)
	require.NoError(t, err)

	assert.False(t, m.Free(0, 0xDEAD0))
	assert.False(t, m.Free(0, ph+1))
	assert.False(t, m.Free(3, ph), "uninitialized device")
	assert.False(t, m.Free(99, ph), "out of range device")

	after, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFree_DuplicateIsNoop(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(0))
	ph, _, err := m.Alloc(0, 100)
	require.NoError(t, err)

	require.True(t, m.Free(0, ph))
	require.False(t, m.Free(0, ph))
	st, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Small.FreeCount)
}

func TestFree_TailTracksOldestOutstanding(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.NoError(t, m.Init(0))
	var phys []uint64
	for range 3 {
		ph, _, err := m.Alloc(0, 1500)
		require.NoError(t, err)
		phys = append(phys, ph)
	}

	m.Free(0, phys[0])
	st, _ := m.Stats(0)
	assert.Equal(t, 1, st.Large.Tail)

	m.Free(0, phys[2])
	st, _ = m.Stats(0)
	assert.Equal(t, 1, st.Large.Tail)

	m.Free(0, phys[1])
	st, _ = m.Stats(0)
	assert.Equal(t, 3, st.Large.Tail)
	assert.Equal(t, st.Large.Head, st.Large.Tail)
	assert.Zero(t, st.Large.InUse)
}

func TestPhysToVirtAndBytes(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	p.PhysOffset = 0x80000
	m := newManager(t, DefaultConfig(), p)
	require.NoError(t, m.Init(0))

	ph, host, err := m.Alloc(0, 1500)
	require.NoError(t, err)
	got, ok := m.PhysToVirt(0, ph)
	require.True(t, ok)
	assert.Equal(t, host, got)
	assert.Equal(t, ph-0x80000, got)

	b, ok := m.Bytes(0, ph)
	require.True(t, ok)
	assert.Len(t, b, 1600)
	assert.Equal(t, 1600, cap(b))

	_, ok = m.PhysToVirt(0, 0x12345)
	assert.False(t, ok)
	_, ok = m.Bytes(2, ph)
	assert.False(t, ok)
}

func TestInit_RetriesPastBoundary(t *testing.T) {
	// The first large block starts at 0xF000 and its slots would straddle 0x10000.
	p := mem.NewSimProvider(0xF000, format.ISALimit)
	m := newManager(t, DefaultConfig(), p)
	require.NoError(t, m.Init(0))

	st, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(32*1600+4096), st.Large.BlockSize)
	assertSlotsSafe(t, m, 0)
}

func TestInit_RetriesExhausted(t *testing.T) {
	p := mem.NewSimProvider(0xF000, format.ISALimit)
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	m := newManager(t, cfg, p)

	err := m.Init(0)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Zero(t, p.Live())
	_, _, err = m.Alloc(0, 100)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_SmallRingFailureReleasesLarge(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	p.FailAfter = 1
	m := newManager(t, DefaultConfig(), p)
	require.Error(t, m.Init(0))
	assert.Zero(t, p.Live())
}

func TestInit_Unreachable(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	p.PhysOffset = format.ISALimit
	cfg := DefaultConfig()
	cfg.AddressLimit = format.ISALimit
	m := newManager(t, cfg, p)
	require.ErrorIs(t, m.Init(0), ErrUnreachable)
	assert.Zero(t, p.Live())
}

type releaseFailingProvider struct {
	*mem.SimProvider
}

var errReleaseFailed = errors.New("release failed")

func (p releaseFailingProvider) Release(b *mem.Block) error {
	_ = p.SimProvider.Release(b)
	return errReleaseFailed
}

func TestInit_UnreachableReportsReleaseError(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	p.PhysOffset = format.ISALimit
	cfg := DefaultConfig()
	cfg.AddressLimit = format.ISALimit
	m, err := NewManager(cfg, releaseFailingProvider{p})
	require.NoError(t, err)

	err = m.Init(0)
	require.ErrorIs(t, err, ErrUnreachable)
	require.ErrorIs(t, err, errReleaseFailed)
	assert.Zero(t, p.Live())
}

func TestRingBytes_SlotOutsideBlock(t *testing.T) {
	r := &Ring{
		block: &mem.Block{Addr: 0x1000, Data: make([]byte, 32)},
		slots: []Slot{{Host: 0x1000, Size: 32}, {Host: 0x1010, Size: 32}},
	}
	assert.Len(t, r.bytes(0), 32)
	assert.Nil(t, r.bytes(1))
}

func TestInit_DeviceErrors(t *testing.T) {
	m := newManager(t, DefaultConfig(), mem.NewSimProvider(0x1000, format.ISALimit))
	require.ErrorIs(t, m.Init(-1), ErrBadDevice)
	require.ErrorIs(t, m.Init(4), ErrBadDevice)
	require.NoError(t, m.Init(0))
	require.ErrorIs(t, m.Init(0), ErrAlreadyInitialized)
	_, err := m.Stats(1)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestTeardownAndClose(t *testing.T) {
	p := mem.NewSimProvider(0x1000, format.ISALimit)
	m, err := NewManager(DefaultConfig(), p)
	require.NoError(t, err)
	require.NoError(t, m.Init(0))
	require.NoError(t, m.Init(1))
	assert.Equal(t, 4, p.Live())

	require.NoError(t, m.Teardown(0))
	assert.Equal(t, 2, p.Live())
	require.ErrorIs(t, m.Teardown(0), ErrNotInitialized)

	require.NoError(t, m.Init(0), "device can be brought up again")
	require.NoError(t, m.Close())
	assert.Zero(t, p.Live())
}

func TestConfigFor(t *testing.T) {
	isa, err := caps.Lookup("3C515-TX")
	require.NoError(t, err)
	cfg := ConfigFor(isa)
	assert.Equal(t, uint64(format.Boundary64K), cfg.Boundary)
	assert.Equal(t, uint64(format.ISALimit), cfg.AddressLimit)
	require.NoError(t, cfg.Validate())

	pci, err := caps.Lookup("3C905C")
	require.NoError(t, err)
	cfg = ConfigFor(pci)
	assert.Zero(t, cfg.Boundary)
	assert.Equal(t, uint64(1)<<32, cfg.AddressLimit)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.LargeCount = 0 },
		func(c *Config) { c.SmallSize = 0 },
		func(c *Config) { c.SmallSize = 2000 },
		func(c *Config) { c.Boundary = 1000 },
		func(c *Config) { c.Boundary = 1024 },
		func(c *Config) { c.Alignment = 12 },
		func(c *Config) { c.RetryUnit = 0 },
		func(c *Config) { c.MaxRetries = 0 },
		func(c *Config) { c.MaxDevices = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
		_, err := NewManager(cfg, mem.NewSimProvider(0, 0x10000))
		assert.Error(t, err, "case %d", i)
	}
	require.NoError(t, DefaultConfig().Validate())
}
