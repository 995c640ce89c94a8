package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimProvider_FirstFit(t *testing.T) {
	p := NewSimProvider(0x1000, 0x20000)

	a, err := p.Allocate(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), a.Addr)
	assert.Len(t, a.Data, 100)

	b, err := p.Allocate(0x200)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1070), b.Addr, "placement is paragraph aligned after a")

	require.NoError(t, p.Release(a))
	c, err := p.Allocate(0x60)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), c.Addr, "freed hole is reused")

	d, err := p.Allocate(0x80)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1270), d.Addr, "hole too small is skipped")
	assert.Equal(t, 3, p.Live())
}

func TestSimProvider_PhysOffset(t *testing.T) {
	p := NewSimProvider(0x1000, 0x20000)
	p.PhysOffset = 0x100000
	b, err := p.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, b.Addr+0x100000, b.Phys)
}

func TestSimProvider_Exhaustion(t *testing.T) {
	p := NewSimProvider(0, 0x1000)
	_, err := p.Allocate(0x1000)
	require.NoError(t, err)
	_, err = p.Allocate(1)
	require.ErrorIs(t, err, ErrOutOfMemory)
	_, err = p.Allocate(0)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestSimProvider_FailAfter(t *testing.T) {
	p := NewSimProvider(0, 0x10000)
	p.FailAfter = 1
	_, err := p.Allocate(16)
	require.NoError(t, err)
	_, err = p.Allocate(16)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestSimProvider_ReleaseUnknown(t *testing.T) {
	p := NewSimProvider(0, 0x10000)
	require.ErrorIs(t, p.Release(&Block{Addr: 0x10}), ErrUnknownBlock)
	require.ErrorIs(t, p.Release(nil), ErrUnknownBlock)

	b, err := p.Allocate(32)
	require.NoError(t, err)
	require.NoError(t, p.Release(b))
	require.ErrorIs(t, p.Release(b), ErrUnknownBlock)
	assert.Zero(t, p.InUse())
	assert.Equal(t, uint64(32), p.HighWater())
}

func TestSimLocker(t *testing.T) {
	l := NewSimLocker(0x40000)
	lk, err := l.Lock(Region{Addr: 0x1000, Size: 0x1000}, LockContiguous|LockNoBoundaryCross)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x41000), lk.PhysBase)
	assert.Equal(t, 1, l.Held())

	require.NoError(t, l.Unlock(lk.Handle))
	require.ErrorIs(t, l.Unlock(lk.Handle), ErrUnknownHandle)
	assert.Zero(t, l.Held())
	assert.Equal(t, 1, l.Locks())
}

func TestSimLocker_RejectsCrossingTranslation(t *testing.T) {
	l := NewSimLocker(0x8000)
	_, err := l.Lock(Region{Addr: 0x4000, Size: 0x8000}, LockNoBoundaryCross)
	require.ErrorIs(t, err, ErrLockRejected)

	lk, err := l.Lock(Region{Addr: 0x4000, Size: 0x8000}, LockContiguous)
	require.NoError(t, err, "without the flag the crossing is accepted")
	assert.Equal(t, uint64(0xC000), lk.PhysBase)
}

func TestSimLocker_Unavailable(t *testing.T) {
	l := &SimLocker{Unavailable: true}
	_, err := l.Lock(Region{Addr: 0, Size: 16}, 0)
	require.ErrorIs(t, err, ErrLockUnavailable)
}

func TestLockFlags_String(t *testing.T) {
	assert.Equal(t, "none", LockFlags(0).String())
	assert.Equal(t, "contiguous|no-boundary-cross", (LockContiguous | LockNoBoundaryCross).String())
}
