package pool

import (
	"fmt"
	"math"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
)

// Pool is one fixed address range. Offsets are backing-range offsets; 0 means
// "none" because the first granule of the backing range is never part of a pool.
type Pool struct {
	ID   int
	Base int
	Size int

	low   int // lowest-address free region
	high  int // highest-address free region
	fence int // zero-size terminator in the last block
}

// Allocator owns one or two pools and hands out regions from them.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Allocator struct {
	mem   []byte
	gran  int
	pools []*Pool
	rep   *diag.Reporter

	counters Counters
}

// New carves the configured pools out of backing. The first granule of
// backing is reserved so that no payload lives at offset 0.
func New(backing []byte, cfg Config) (*Allocator, error) {
	gran := cfg.Granularity
	if gran == 0 {
		gran = DefaultGranularity
	}
	if !format.IsPow2(gran) || gran < HeaderSize {
		return nil, fmt.Errorf("%w: granularity %d", ErrBadConfig, gran)
	}
	if len(cfg.Sizes) == 0 || len(cfg.Sizes) > MaxPools {
		return nil, fmt.Errorf("%w: need 1..%d pools, got %d", ErrBadConfig, MaxPools, len(cfg.Sizes))
	}

	a := &Allocator{mem: backing, gran: gran, rep: cfg.Reporter}
	off := gran
	for id, size := range cfg.Sizes {
		if size%gran != 0 || size < 2*gran {
			return nil, fmt.Errorf("%w: pool %d size %d", ErrBadConfig, id, size)
		}
		if off+size > len(backing) || off+size > math.MaxUint32 {
			return nil, fmt.Errorf("%w: pool %d does not fit backing range of %d bytes",
				ErrBadConfig, id, len(backing))
		}
		a.pools = append(a.pools, &Pool{ID: id, Base: off, Size: size})
		off += size
	}
	a.Reset()
	return a, nil
}

// Reset returns every pool to a single free region. Any outstanding pointer
// becomes invalid. Resetting an already-empty allocator is a no-op.
func (a *Allocator) Reset() {
	for _, p := range a.pools {
		p.fence = p.Base + p.Size - a.gran
		first := p.Base
		a.writeHeader(first, p.ID, (p.Size-a.gran)/a.gran, 0, p.fence, flagFree)
		a.setFreeNext(first, 0)
		a.setFreePrev(first, 0)
		a.writeHeader(p.fence, p.ID, 0, first, 0, 0)
		p.low, p.high = first, first
	}
}

// Allocate returns a payload of at least size bytes aligned to align (0 means
// MinAlign) from the pool and direction named by flags.
//
// A failed allocation leaves the pool untouched.
func (a *Allocator) Allocate(size, align int, flags Flags) (mem.Ptr, error) {
	if size <= 0 {
		a.invalid("alloc", mem.Nil, size, ErrZeroSize)
		return mem.Nil, ErrZeroSize
	}
	align, err := a.normAlign(align)
	if err != nil {
		a.invalid("alloc", mem.Nil, size, err)
		return mem.Nil, err
	}
	p, err := a.pool(flags.Pool())
	if err != nil {
		a.invalid("alloc", mem.Nil, size, err)
		return mem.Nil, err
	}

	top := flags&Top != 0
	r := 0
	if size <= p.Size {
		need := a.blocksFor(size, align)
		if top {
			if r = a.fitTop(p, need); r != 0 {
				r = a.carveTop(p, r, need)
			}
		} else if r = a.fitBottom(p, need); r != 0 {
			a.carveBottom(p, r, need)
		}
	}
	if r == 0 {
		a.counters.Failures++
		a.rep.Report(diag.Event{Kind: diag.OutOfMemory, Tier: "pool", Op: "alloc", Size: size, Err: ErrNoSpace})
		return mem.Nil, ErrNoSpace
	}

	off := a.commit(r, size, align, top)
	if flags&Clear != 0 {
		format.Clear(a.mem, off, size)
	}
	a.counters.Allocs++
	logger.Alloc("pool alloc", "pool", p.ID, "size", size, "align", align, "top", top, "ptr", off)
	return mem.Ptr(off), nil
}

// commit marks region r allocated and returns its payload offset.
func (a *Allocator) commit(r, size, align int, top bool) int {
	var f byte
	if top {
		f = flagTop
	}
	a.setFlags(r, f)
	a.put32(r+offReqSize, size)
	a.put32(r+offAlign, align)
	a.put32(r+offTag, 0)
	off := r + payloadOffset(align)
	a.put32(off-4, r)
	return off
}

// Release frees the region behind ptr and coalesces it with free neighbours.
// Releasing mem.Nil is a no-op.
func (a *Allocator) Release(ptr mem.Ptr) error {
	if ptr == mem.Nil {
		return nil
	}
	p, r, err := a.locate(ptr)
	if err != nil {
		a.invalid("free", ptr, 0, err)
		return err
	}
	a.counters.Releases++
	logger.Alloc("pool free", "pool", p.ID, "ptr", uint32(ptr), "size", a.reqSize(r))
	a.freeRegion(p, r)
	return nil
}

// fitBottom scans the free list upward for the first region with need blocks.
func (a *Allocator) fitBottom(p *Pool, need int) int {
	for r := p.low; r != 0; r = a.freeNext(r) {
		if a.blocks(r) >= need {
			return r
		}
	}
	return 0
}

// fitTop scans the free list downward for the first region with need blocks.
func (a *Allocator) fitTop(p *Pool, need int) int {
	for r := p.high; r != 0; r = a.freePrev(r) {
		if a.blocks(r) >= need {
			return r
		}
	}
	return 0
}

// carveBottom takes need blocks from the low end of free region r. The
// surplus stays free in r's free-list position.
func (a *Allocator) carveBottom(p *Pool, r, need int) {
	have := a.blocks(r)
	if have == need {
		a.unlinkFree(p, r)
		return
	}
	t := r + need*a.gran
	next := a.nextOf(r)
	a.writeHeader(t, p.ID, have-need, r, next, flagFree)
	a.link(t, r, next)
	a.setBlocks(r, need)
	a.replaceFree(p, r, t)
	a.counters.Splits++
}

// carveTop takes need blocks from the high end of free region r and returns
// the new region. The surplus keeps r's header and free-list position.
func (a *Allocator) carveTop(p *Pool, r, need int) int {
	have := a.blocks(r)
	if have == need {
		a.unlinkFree(p, r)
		return r
	}
	u := r + (have-need)*a.gran
	next := a.nextOf(r)
	a.writeHeader(u, p.ID, need, r, next, 0)
	a.link(u, r, next)
	a.setBlocks(r, have-need)
	a.counters.Splits++
	return u
}

// freeRegion flags r free, merges it with free neighbours and places the
// result in the free list. Returns the surviving region.
func (a *Allocator) freeRegion(p *Pool, r int) int {
	a.setFlags(r, flagFree)
	a.put32(r+offTag, 0)
	inList := false

	// The fence is always allocated, so next is never past the pool.
	if next := a.nextOf(r); a.isFree(next) {
		nn := a.nextOf(next)
		a.setBlocks(r, a.blocks(r)+a.blocks(next))
		a.replaceFree(p, next, r)
		a.setNext(r, nn)
		a.setPrev(nn, r)
		a.counters.Coalesces++
		inList = true
	}

	if prev := a.prevOf(r); prev != 0 && a.isFree(prev) {
		if inList {
			a.unlinkFree(p, r)
		}
		nn := a.nextOf(r)
		a.setBlocks(prev, a.blocks(prev)+a.blocks(r))
		a.setNext(prev, nn)
		a.setPrev(nn, prev)
		a.counters.Coalesces++
		return prev
	}

	if !inList {
		a.insertFree(p, r)
	}
	return r
}

// insertFree links r into the address-ordered free list. Head and tail
// insertion are O(1); an interior insertion walks the region chain forward to
// the next free region.
func (a *Allocator) insertFree(p *Pool, r int) {
	switch {
	case p.low == 0:
		a.setFreeNext(r, 0)
		a.setFreePrev(r, 0)
		p.low, p.high = r, r
	case r < p.low:
		a.setFreeNext(r, p.low)
		a.setFreePrev(r, 0)
		a.setFreePrev(p.low, r)
		p.low = r
	case r > p.high:
		a.setFreeNext(r, 0)
		a.setFreePrev(r, p.high)
		a.setFreeNext(p.high, r)
		p.high = r
	default:
		a.counters.ChainWalks++
		s := a.nextOf(r)
		for !a.isFree(s) {
			s = a.nextOf(s)
		}
		fp := a.freePrev(s)
		a.setFreeNext(r, s)
		a.setFreePrev(r, fp)
		a.setFreePrev(s, r)
		a.setFreeNext(fp, r)
	}
}

func (a *Allocator) unlinkFree(p *Pool, r int) {
	fn, fp := a.freeNext(r), a.freePrev(r)
	if fp != 0 {
		a.setFreeNext(fp, fn)
	} else {
		p.low = fn
	}
	if fn != 0 {
		a.setFreePrev(fn, fp)
	} else {
		p.high = fp
	}
}

// replaceFree puts nw in old's free-list position.
func (a *Allocator) replaceFree(p *Pool, old, nw int) {
	fn, fp := a.freeNext(old), a.freePrev(old)
	a.setFreeNext(nw, fn)
	a.setFreePrev(nw, fp)
	if fp != 0 {
		a.setFreeNext(fp, nw)
	} else {
		p.low = nw
	}
	if fn != 0 {
		a.setFreePrev(fn, nw)
	} else {
		p.high = nw
	}
}

// locate validates ptr and returns its pool and region.
func (a *Allocator) locate(ptr mem.Ptr) (*Pool, int, error) {
	off := int(ptr)
	p := a.poolAt(off)
	if p == nil || off < p.Base+HeaderSize || off > p.fence {
		return nil, 0, ErrBadPtr
	}
	r := a.u32(off - 4)
	if r < p.Base || r >= p.fence || (r-p.Base)%a.gran != 0 {
		return nil, 0, ErrBadPtr
	}
	if a.magic(r) != regionMagic || a.isFree(r) || a.poolOf(r) != p.ID {
		return nil, 0, ErrBadPtr
	}
	if r+payloadOffset(a.reqAlign(r)) != off {
		return nil, 0, ErrBadPtr
	}
	return p, r, nil
}

func (a *Allocator) poolAt(off int) *Pool {
	for _, p := range a.pools {
		if off >= p.Base && off < p.Base+p.Size {
			return p
		}
	}
	return nil
}

func (a *Allocator) pool(id int) (*Pool, error) {
	if id < 0 || id >= len(a.pools) {
		return nil, ErrBadPool
	}
	return a.pools[id], nil
}

func (a *Allocator) normAlign(align int) (int, error) {
	if align == 0 {
		return MinAlign, nil
	}
	if !format.IsPow2(align) || align > a.gran {
		return 0, ErrBadAlign
	}
	return max(align, MinAlign), nil
}

func (a *Allocator) invalid(op string, ptr mem.Ptr, size int, err error) {
	a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "pool", Op: op, Ptr: uint32(ptr), Size: size, Err: err})
}
