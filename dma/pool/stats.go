package pool

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/joshuapare/nicdma/dma/diag"
	"github.com/joshuapare/nicdma/internal/format"
)

// PoolStats is a snapshot of one pool.
type PoolStats struct {
	Index       int     `json:"index"`
	State       State   `json:"state"`
	HostBase    uint64  `json:"host_base"`
	DeviceBase  uint64  `json:"device_base"`
	TotalSize   uint64  `json:"total_size"`
	Allocated   uint64  `json:"allocated"`
	Peak        uint64  `json:"peak"`
	FreeBlocks  int     `json:"free_blocks"`
	LargestFree uint64  `json:"largest_free"`
	Locked      bool    `json:"locked"`
	Utilization float64 `json:"utilization"` // percent
	Counters
}

// Stats aggregates every pool.
type Stats struct {
	Pools        []PoolStats `json:"pools"`
	ActivePools  int         `json:"active_pools"`
	LockedPools  int         `json:"locked_pools"`
	TotalSize    uint64      `json:"total_size"`
	Allocated    uint64      `json:"allocated"`
	Peak         uint64      `json:"peak"`
	Allocs       uint64      `json:"allocs"`
	Frees        uint64      `json:"frees"`
	FailedAllocs uint64      `json:"failed_allocs"`
	Utilization  float64     `json:"utilization"` // percent
	Counters
}

// Stats returns a snapshot of every pool.
func (s *Subsystem) Stats() Stats {
	st := Stats{
		Pools:        make([]PoolStats, 0, len(s.pools)),
		Allocs:       s.allocs,
		Frees:        s.frees,
		FailedAllocs: s.failedAllocs,
	}
	for _, p := range s.pools {
		ps := PoolStats{
			Index:       p.index,
			State:       p.state,
			HostBase:    p.start,
			DeviceBase:  p.deviceBase(),
			TotalSize:   p.size,
			Allocated:   p.allocated,
			Peak:        p.peak,
			FreeBlocks:  len(p.free),
			LargestFree: p.largestFree(),
			Locked:      p.lock.locked,
			Utilization: p.utilization(),
			Counters:    p.counters,
		}
		st.Pools = append(st.Pools, ps)

		if p.state == StateActive {
			st.ActivePools++
		}
		if p.lock.locked {
			st.LockedPools++
		}
		st.TotalSize += p.size
		st.Allocated += p.allocated
		st.Peak += p.peak
		st.BoundaryViolations += p.counters.BoundaryViolations
		st.AlignmentAdjustments += p.counters.AlignmentAdjustments
		st.AllocationFailures += p.counters.AllocationFailures
	}
	if st.TotalSize > 0 {
		st.Utilization = float64(st.Allocated) * 100 / float64(st.TotalSize)
	}
	return st
}

// Health is the advisory result of HealthCheck. Score is 0 for a healthy
// subsystem and decreases with each problem found.
type Health struct {
	Score  int          `json:"score"`
	Report *diag.Report `json:"report"`
}

// Healthy reports whether no deductions were made.
func (h Health) Healthy() bool {
	return h.Score == 0
}

// HealthCheck scores every active pool. It deducts 2 when boundary
// violations exceed a quarter of allocation failures, 1 above 90%
// utilization, and 1 when the free list is longer than the fragmentation
// threshold. The result never fails an operation.
func (s *Subsystem) HealthCheck() Health {
	h := Health{Report: diag.NewReport("pools")}
	for _, p := range s.pools {
		if p.state != StateActive {
			continue
		}
		r := diag.NewReport(poolLabel(p.index))
		c := p.counters
		if c.BoundaryViolations > c.AllocationFailures/4 {
			h.Score -= 2
			r.Addf(diag.SevWarning, diag.CatHealth, "BoundaryViolations",
				"%d boundary violations against %d allocation failures", c.BoundaryViolations, c.AllocationFailures)
		}
		if u := p.utilization(); u > format.HighUtilizationPercent {
			h.Score--
			r.Addf(diag.SevWarning, diag.CatHealth, "Utilization", "utilization %.1f%% above %d%%", u, format.HighUtilizationPercent)
		}
		if n := len(p.free); n > s.cfg.FragmentationThreshold {
			h.Score--
			r.Addf(diag.SevInfo, diag.CatHealth, "FreeBlocks", "%d free blocks above threshold %d", n, s.cfg.FragmentationThreshold)
		}
		h.Report.Merge(r)
	}
	if h.Score < 0 {
		s.logger.Info("DMA pool health degraded", zap.Int("score", h.Score))
	}
	return h
}

func poolLabel(index int) string {
	return "pool" + strconv.Itoa(index)
}
