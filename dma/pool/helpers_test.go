package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/dma/mem"
	"github.com/joshuapare/nicdma/internal/format"
)

func newProvider() *mem.SimProvider {
	return mem.NewSimProvider(0x1000, format.ISALimit)
}

func newSubsystem(t *testing.T, cfg Config, locker mem.Locker) (*Subsystem, *mem.SimProvider) {
	t.Helper()
	p := newProvider()
	s, err := New(cfg, p, locker)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.State() == StateActive {
			_ = s.Shutdown()
		}
	})
	return s, p
}

// assertInvariants checks the pool invariants and every live allocation.
func assertInvariants(t *testing.T, s *Subsystem, live []*Allocation) {
	t.Helper()
	require.NoError(t, s.Verify())
	g := s.Config().Boundary
	for _, a := range live {
		require.True(t, a.Valid())
		require.False(t, boundary.Crosses(a.DeviceAddr, a.Size, g), "allocation %#x+%d crosses", a.DeviceAddr, a.Size)
	}
}

// fakeLocker returns a fixed physical base and records unlocks.
type fakeLocker struct {
	physBase uint64
	unlocked []uint32
	next     uint32
}

func (f *fakeLocker) Lock(mem.Region, mem.LockFlags) (mem.Lock, error) {
	f.next++
	return mem.Lock{Handle: f.next, PhysBase: f.physBase}, nil
}

func (f *fakeLocker) Unlock(h uint32) error {
	f.unlocked = append(f.unlocked, h)
	return nil
}
