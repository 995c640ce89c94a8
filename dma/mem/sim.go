package mem

import (
	"fmt"
	"slices"

	"github.com/joshuapare/nicdma/dma/boundary"
	"github.com/joshuapare/nicdma/internal/buf"
	"github.com/joshuapare/nicdma/internal/format"
)

// SimProvider models a conventional-memory arena. Blocks are placed first-fit
// at Granularity-aligned addresses in [Base, Limit), so the resulting
// addresses are deterministic for a given sequence of calls.
//
// SimProvider is not safe for concurrent use.
type SimProvider struct {
	Base        uint64
	Limit       uint64
	Granularity uint64 // placement alignment; 0 means format.Paragraph
	PhysOffset  uint64 // added to Addr to form Block.Phys

	// FailAfter makes every Allocate fail once that many blocks have been
	// handed out in total. Negative disables it.
	FailAfter int

	live    []*Block // sorted by Addr
	handed  int
	inUse   uint64
	maxUsed uint64
}

// NewSimProvider returns a provider over [base, limit) with paragraph granularity.
func NewSimProvider(base, limit uint64) *SimProvider {
	return &SimProvider{Base: base, Limit: limit, Granularity: format.Paragraph, FailAfter: -1}
}

func (p *SimProvider) granularity() uint64 {
	if p.Granularity == 0 {
		return format.Paragraph
	}
	return p.Granularity
}

// Allocate places a block of size bytes at the lowest address that fits.
func (p *SimProvider) Allocate(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrOutOfMemory)
	}
	if p.FailAfter >= 0 && p.handed >= p.FailAfter {
		return nil, fmt.Errorf("allocate %d bytes (injected): %w", size, ErrOutOfMemory)
	}

	g := p.granularity()
	need := format.AlignUp(uint64(size), g)
	cand := format.AlignUp(p.Base, g)
	idx := 0
	for ; idx < len(p.live); idx++ {
		b := p.live[idx]
		if end, ok := buf.AddOverflowSafe(cand, need); ok && end <= b.Addr {
			break
		}
		cand = max(cand, format.AlignUp(b.Addr+b.Size(), g))
	}
	if p.Limit < p.Base || !buf.Contains(p.Base, p.Limit-p.Base, cand, need) {
		return nil, fmt.Errorf("allocate %d bytes: %w", size, ErrOutOfMemory)
	}

	b := &Block{Addr: cand, Phys: cand + p.PhysOffset, Data: make([]byte, size)}
	p.live = slices.Insert(p.live, idx, b)
	p.handed++
	p.inUse += b.Size()
	p.maxUsed = max(p.maxUsed, p.inUse)
	return b, nil
}

// Release returns b to the arena.
func (p *SimProvider) Release(b *Block) error {
	if b == nil {
		return fmt.Errorf("release nil block: %w", ErrUnknownBlock)
	}
	i := slices.Index(p.live, b)
	if i < 0 {
		return fmt.Errorf("release block at %#x: %w", b.Addr, ErrUnknownBlock)
	}
	p.live = slices.Delete(p.live, i, i+1)
	p.inUse -= b.Size()
	return nil
}

// Live returns the number of outstanding blocks.
func (p *SimProvider) Live() int { return len(p.live) }

// InUse returns the bytes currently handed out.
func (p *SimProvider) InUse() uint64 { return p.inUse }

// HighWater returns the most bytes ever outstanding at once.
func (p *SimProvider) HighWater() uint64 { return p.maxUsed }

// SimLocker models a memory manager that remaps conventional memory: the
// physical base of a locked region is its address plus PhysDelta.
//
// SimLocker is not safe for concurrent use.
type SimLocker struct {
	PhysDelta uint64
	Boundary  uint64 // checked for LockNoBoundaryCross; 0 means format.Boundary64K
	// Unavailable makes every Lock fail with ErrLockUnavailable.
	Unavailable bool

	next  uint32
	held  map[uint32]Region
	locks int
}

// NewSimLocker returns a locker translating by delta.
func NewSimLocker(delta uint64) *SimLocker {
	return &SimLocker{PhysDelta: delta}
}

// Lock records r and returns its translated physical base.
func (l *SimLocker) Lock(r Region, flags LockFlags) (Lock, error) {
	if l.Unavailable {
		return Lock{}, ErrLockUnavailable
	}
	phys, ok := buf.AddOverflowSafe(r.Addr, l.PhysDelta)
	if !ok {
		return Lock{}, fmt.Errorf("translate %#x: %w", r.Addr, ErrLockRejected)
	}
	g := l.Boundary
	if g == 0 {
		g = format.Boundary64K
	}
	if flags&LockNoBoundaryCross != 0 && boundary.Crosses(phys, r.Size, g) {
		return Lock{}, fmt.Errorf("region %#x+%d at phys %#x (%s): %w", r.Addr, r.Size, phys, flags, ErrLockRejected)
	}
	if l.held == nil {
		l.held = make(map[uint32]Region)
	}
	l.next++
	l.held[l.next] = r
	l.locks++
	return Lock{Handle: l.next, PhysBase: phys}, nil
}

// Unlock releases a handle returned by Lock.
func (l *SimLocker) Unlock(handle uint32) error {
	if _, ok := l.held[handle]; !ok {
		return fmt.Errorf("unlock %d: %w", handle, ErrUnknownHandle)
	}
	delete(l.held, handle)
	return nil
}

// Held returns the number of outstanding locks.
func (l *SimLocker) Held() int { return len(l.held) }

// Locks returns the number of successful Lock calls.
func (l *SimLocker) Locks() int { return l.locks }
