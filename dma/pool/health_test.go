package pool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nicdma/dma/diag"
)

func TestHealthCheck_FreshIsHealthy(t *testing.T) {
	s, _ := newSubsystem(t, Config{}, nil)
	h := s.HealthCheck()
	assert.True(t, h.Healthy())
	assert.Empty(t, h.Report.Findings)
}

func TestHealthCheck_HighUtilization(t *testing.T) {
	s, _ := newSubsystem(t, Config{}, nil)
	for {
		if _, err := s.Alloc(8192, 16); err != nil {
			break
		}
	}
	h := s.HealthCheck()
	assert.Equal(t, -3, h.Score, "three full pools")
	assert.Len(t, h.Report.Findings, 3)
	for _, f := range h.Report.Findings {
		assert.Equal(t, "Utilization", f.Field)
		assert.Equal(t, diag.CatHealth, f.Category)
	}
}

func TestHealthCheck_Fragmentation(t *testing.T) {
	s, _ := newSubsystem(t, Config{Sizes: []uint64{4096}, FragmentationThreshold: 2}, nil)
	var all []*Allocation
	for range 6 {
		a, err := s.Alloc(16, 16)
		require.NoError(t, err)
		all = append(all, a)
	}
	for i := 1; i < len(all); i += 2 {
		require.NoError(t, s.Free(all[i]))
	}
	h := s.HealthCheck()
	assert.Equal(t, -1, h.Score)
	require.Len(t, h.Report.Findings, 1)
	assert.Equal(t, "pool0", h.Report.Findings[0].Subject)
	assert.Equal(t, diag.SevInfo, h.Report.Findings[0].Severity)
}

func TestHealthCheck_BoundaryViolations(t *testing.T) {
	s, _ := newSubsystem(t, Config{Sizes: []uint64{4096}}, nil)
	s.pools[0].counters = Counters{BoundaryViolations: 2, AllocationFailures: 4}
	h := s.HealthCheck()
	assert.Equal(t, -2, h.Score)

	s.pools[0].counters = Counters{BoundaryViolations: 1, AllocationFailures: 4}
	assert.True(t, s.HealthCheck().Healthy(), "violations at a quarter of failures are tolerated")
}

func TestTake_SkipsCrossingCandidates(t *testing.T) {
	// A pool whose device range straddles 0x10000 can only come from a
	// misbehaving locker; take must still refuse to hand out crossing ranges.
	p := &pool{
		state: StateActive,
		start: 0x20000,
		size:  0x200,
		lock:  lockInfo{locked: true, physBase: 0xFF00},
		free:  []FreeBlock{{Offset: 0, Size: 0x200}},
		live:  make(map[uint64]uint64),
	}
	_, ok := p.take(0x180, 16, 0x10000)
	assert.False(t, ok)
	assert.Equal(t, Counters{BoundaryViolations: 1, AllocationFailures: 1}, p.counters)

	off, ok := p.take(0x100, 16, 0x10000)
	require.True(t, ok)
	assert.Zero(t, off)
	assert.Equal(t, uint64(0x100), p.allocated)
}

func TestVerify_DetectsCorruption(t *testing.T) {
	s, _ := newSubsystem(t, Config{Sizes: []uint64{4096}}, nil)
	require.NoError(t, s.Verify())

	s.pools[0].free = append(s.pools[0].free, FreeBlock{Offset: 100, Size: 16})
	err := s.Verify()
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "overlap")
}

func TestVerify_DetectsAllocationOutsidePool(t *testing.T) {
	s, _ := newSubsystem(t, Config{Sizes: []uint64{4096}}, nil)
	p := s.pools[0]
	p.live[4090] = 16
	p.allocated += 16

	err := s.Verify()
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "outside pool memory")
}

func TestStats_Aggregates(t *testing.T) {
	s, _ := newSubsystem(t, Config{}, nil)
	a, err := s.Alloc(4096, 16)
	require.NoError(t, err)
	_, err = s.Alloc(8192, 16)
	require.NoError(t, err)
	require.NoError(t, s.Free(a))

	st := s.Stats()
	assert.Equal(t, uint64(8192), st.Allocated)
	assert.Equal(t, uint64(4096+8192), st.Peak)
	assert.Equal(t, uint64(2), st.Allocs)
	assert.Equal(t, uint64(1), st.Frees)
	assert.InDelta(t, 8192*100.0/61440, st.Utilization, 0.001)
	assert.InDelta(t, 8192*100.0/32768, st.Pools[0].Utilization, 0.001)
}

func TestStats_JSONRoundTrip(t *testing.T) {
	s, _ := newSubsystem(t, Config{}, nil)
	_, err := s.Alloc(512, 0)
	require.NoError(t, err)

	st := s.Stats()
	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"active"`)

	var back Stats
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, st, back)

	var state State
	require.Error(t, state.UnmarshalText([]byte("paused")))
}
