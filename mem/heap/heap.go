package heap

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/pool"
)

// Heap is one pool region subdivided into blocks.
type Heap struct {
	index int
	base  int // first block offset, also the pool payload pointer
	size  int // bytes from base through the end marker

	free       int // free bytes
	freeBlocks int
	used       int   // allocated blocks
	heads      []int // per-class free list heads, 0 = empty

	prev, next *Heap // address order
	dead       bool
}

// Allocator is the segregated-fit heap tier.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Allocator struct {
	pa      *pool.Allocator
	mem     []byte
	cfg     Config
	classes *sizeClassTable
	rep     *diag.Reporter

	heaps   []*Heap // by index; nil entries are reusable
	freeIdx []int
	first   *Heap // lowest-address heap

	// firstHeap[c] is the lowest-address heap with a free block of class c.
	firstHeap []*Heap

	stats Stats
}

// New builds a heap tier on top of pa.
func New(pa *pool.Allocator, cfg Config) (*Allocator, error) {
	cfg = cfg.withDefaults()
	if !cfg.Classes.validate() {
		return nil, fmt.Errorf("%w: size classes %q", ErrBadConfig, cfg.Classes.Name)
	}
	// Every large-class block must fit any request below the cutoff.
	if cfg.LargeCutoff+blockHeader > cfg.Classes.MediumMax || cfg.LargeCutoff < minBlock {
		return nil, fmt.Errorf("%w: large cutoff %d must be in [%d, %d]",
			ErrBadConfig, cfg.LargeCutoff, minBlock, cfg.Classes.MediumMax-blockHeader)
	}
	if cfg.HeapSize%blockAlign != 0 || cfg.MinHeapSize%blockAlign != 0 ||
		cfg.MinHeapSize > cfg.HeapSize || cfg.MinHeapSize < 2*minBlock {
		return nil, fmt.Errorf("%w: heap sizes %d/%d", ErrBadConfig, cfg.HeapSize, cfg.MinHeapSize)
	}
	table := newSizeClassTable(cfg.Classes)
	if table.numClasses >= 255 {
		return nil, fmt.Errorf("%w: %d size classes", ErrBadConfig, table.numClasses)
	}
	return &Allocator{
		pa:        pa,
		mem:       pa.Mem(),
		cfg:       cfg,
		classes:   table,
		rep:       cfg.Reporter,
		firstHeap: make([]*Heap, table.numClasses+1),
	}, nil
}

// Alloc returns a payload of at least size bytes, 8-byte aligned. Requests
// below the cutoff are always served from a heap block.
func (a *Allocator) Alloc(size int) (mem.Ptr, error) {
	return a.alloc(size, false)
}

// alloc serves a request. With spill set, a small request that no heap can
// hold is served by the pool tier like a large one.
func (a *Allocator) alloc(size int, spill bool) (mem.Ptr, error) {
	if size <= 0 {
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "heap", Op: "alloc", Size: size, Err: ErrZeroSize})
		return mem.Nil, ErrZeroSize
	}
	a.stats.Allocs++
	if size >= a.cfg.LargeCutoff {
		return a.allocLarge(size)
	}

	need := blockSizeFor(size)
	h, b := a.find(need)
	if h == nil {
		var err error
		if h, err = a.grow(need); err != nil {
			if spill {
				p, err := a.allocLarge(size)
				if err == nil {
					a.stats.Spills++
				}
				return p, err
			}
			a.stats.Allocs--
			a.rep.Report(diag.Event{Kind: diag.OutOfMemory, Tier: "heap", Op: "alloc", Size: size, Err: err})
			return mem.Nil, err
		}
		b = h.base
	}
	a.carve(h, b, need)
	logger.Alloc("heap alloc", "heap", h.index, "size", size, "block", need, "ptr", b+blockHeader)
	return mem.Ptr(b + blockHeader), nil
}

// find locates a free block of at least need bytes. The head of the request's
// own class is tried first; any block in a larger class fits by construction.
func (a *Allocator) find(need int) (*Heap, int) {
	c := a.classes.classOf(need)
	if h := a.firstHeap[c]; h != nil {
		if b := h.heads[c]; a.bsize(b) >= need {
			return h, b
		}
	}
	for k := c + 1; k < len(a.firstHeap); k++ {
		if h := a.firstHeap[k]; h != nil {
			return h, h.heads[k]
		}
	}
	return nil, 0
}

// carve turns free block b into an allocated block of need bytes, returning
// any usable surplus to the free lists.
func (a *Allocator) carve(h *Heap, b, need int) {
	have := a.bsize(b)
	a.unlink(h, b)
	if rem := have - need; rem >= minBlock {
		a.markUsed(b, need, false, h.index)
		a.push(h, b+need, rem)
		a.stats.Splits++
	} else {
		a.markUsed(b, have, false, h.index)
		a.setPrevFreeBit(b+have, false)
	}
	h.used++
}

// Release returns the block at ptr to its heap, coalescing with free
// neighbours. A heap whose last block is released goes back to the pool.
// Large allocations are released to the pool tier.
func (a *Allocator) Release(ptr mem.Ptr) error {
	if ptr == mem.Nil {
		return nil
	}
	h, b, err := a.locate(ptr)
	if err != nil {
		if a.isLarge(ptr) {
			a.stats.Frees++
			a.stats.LargeAllocs--
			return a.pa.Release(ptr)
		}
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "heap", Op: "free", Ptr: uint32(ptr), Err: err})
		return err
	}
	pb := 0
	if a.prevFree(b) {
		pb = a.word(b - 4)
		if pb < h.base || pb >= b || pb+a.bsize(pb) != b || !a.bfree(pb) {
			err := diag.Corruptf("heap", b-4, "footer self pointer 0x%X does not reach block", pb)
			a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "heap", Op: "free", Ptr: uint32(ptr), Err: err})
			return err
		}
	}
	a.stats.Frees++
	logger.Alloc("heap free", "heap", h.index, "ptr", uint32(ptr), "block", a.bsize(b))

	size := a.bsize(b)
	h.used--

	if n := b + size; a.bfree(n) {
		size += a.bsize(n)
		a.unlink(h, n)
		a.stats.CoalesceForward++
	}
	if pb != 0 {
		size += a.bsize(pb)
		a.unlink(h, pb)
		format.PutU16(a.mem, b+4, 0) // stale pointers to b must not look live
		b = pb
		a.stats.CoalesceBack++
	}
	a.push(h, b, size)

	if h.used == 0 {
		a.destroy(h)
	}
	return nil
}

// push marks [b, b+size) free, links it into its class list and flags the
// following block.
func (a *Allocator) push(h *Heap, b, size int) {
	a.markFree(b, size)
	a.setPrevFreeBit(b+size, true)

	c := a.classes.classOf(size)
	head := h.heads[c]
	a.setNextFree(b, head)
	a.setPrevFreeOf(b, 0)
	if head != 0 {
		a.setPrevFreeOf(head, b)
	}
	h.heads[c] = b
	h.free += size
	h.freeBlocks++

	if f := a.firstHeap[c]; f == nil || h.base < f.base {
		a.firstHeap[c] = h
	}
}

// unlink removes free block b from its class list.
func (a *Allocator) unlink(h *Heap, b int) {
	size := a.bsize(b)
	c := a.classes.classOf(size)
	nx, pv := a.nextFree(b), a.prevFreeOf(b)
	if pv != 0 {
		a.setNextFree(pv, nx)
	} else {
		h.heads[c] = nx
	}
	if nx != 0 {
		a.setPrevFreeOf(nx, pv)
	}
	h.free -= size
	h.freeBlocks--

	if h.heads[c] == 0 && a.firstHeap[c] == h {
		a.advanceFirst(h, c)
	}
}

// advanceFirst moves firstHeap[c] past h to the next heap, in address order,
// that still has a class-c free block.
func (a *Allocator) advanceFirst(h *Heap, c int) {
	g := h.next
	for g != nil && g.heads[c] == 0 {
		g = g.next
	}
	a.firstHeap[c] = g
}

// grow carves a new heap big enough for a need-byte block. The default size
// is halved on pool pressure down to the configured floor.
func (a *Allocator) grow(need int) (*Heap, error) {
	if len(a.freeIdx) == 0 && len(a.heaps) >= maxHeaps {
		return nil, ErrNoSpace
	}
	for size := a.cfg.HeapSize; size >= a.cfg.MinHeapSize; size /= 2 {
		size = format.AlignDown(size, blockAlign)
		if size < need+blockHeader {
			break
		}
		p, err := a.pa.Allocate(size, blockAlign, a.cfg.PoolFlags)
		if err != nil {
			a.stats.HeapHalvings++
			continue
		}
		return a.newHeap(int(p), size), nil
	}
	return nil, ErrNoSpace
}

func (a *Allocator) newHeap(base, size int) *Heap {
	h := &Heap{
		base:  base,
		size:  size,
		heads: make([]int, a.classes.numClasses+1),
	}
	if n := len(a.freeIdx); n > 0 {
		h.index = a.freeIdx[n-1]
		a.freeIdx = a.freeIdx[:n-1]
		a.heaps[h.index] = h
	} else {
		h.index = len(a.heaps)
		a.heaps = append(a.heaps, h)
	}
	_ = a.pa.SetTag(mem.Ptr(base), heapTag|uint32(h.index))

	// Address-ordered insertion; heaps are created rarely.
	var prev *Heap
	for g := a.first; g != nil && g.base < base; g = g.next {
		prev = g
	}
	h.prev = prev
	if prev == nil {
		h.next = a.first
		a.first = h
	} else {
		h.next = prev.next
		prev.next = h
	}
	if h.next != nil {
		h.next.prev = h
	}

	// End marker: a zero-size allocated block that stops forward coalescing.
	end := base + size - blockHeader
	a.markUsed(end, 0, false, h.index)
	a.push(h, base, size-blockHeader)

	a.stats.HeapsCreated++
	logger.Alloc("heap created", "heap", h.index, "base", base, "size", size)
	return h
}

// destroy returns an empty heap to the pool. Destroying an already released
// heap is a no-op.
func (a *Allocator) destroy(h *Heap) {
	if h.dead {
		return
	}
	for c := range h.heads {
		for h.heads[c] != 0 {
			a.unlink(h, h.heads[c])
		}
	}
	if h.prev != nil {
		h.prev.next = h.next
	} else {
		a.first = h.next
	}
	if h.next != nil {
		h.next.prev = h.prev
	}
	h.prev, h.next = nil, nil
	h.dead = true

	a.heaps[h.index] = nil
	a.freeIdx = append(a.freeIdx, h.index)
	a.stats.HeapsReleased++
	logger.Alloc("heap released", "heap", h.index, "base", h.base)
	if err := a.pa.Release(mem.Ptr(h.base)); err != nil {
		a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "heap", Op: "destroy", Ptr: uint32(h.base), Err: err})
	}
}

// locate validates ptr as a live heap block.
func (a *Allocator) locate(ptr mem.Ptr) (*Heap, int, error) {
	b := int(ptr) - blockHeader
	if b <= 0 || b+blockHeader > len(a.mem) || b%blockAlign != 0 {
		return nil, 0, ErrBadPtr
	}
	if a.bmagic(b) != blockMagic || a.bfree(b) {
		return nil, 0, ErrBadPtr
	}
	idx := a.bheap(b)
	if idx >= len(a.heaps) || a.heaps[idx] == nil {
		return nil, 0, ErrBadPtr
	}
	h := a.heaps[idx]
	if b < h.base || b+a.bsize(b) > h.base+h.size-blockHeader || a.bsize(b) < minBlock {
		return nil, 0, ErrBadPtr
	}
	return h, b, nil
}

func (a *Allocator) allocLarge(size int) (mem.Ptr, error) {
	p, err := a.pa.Allocate(size, blockAlign, a.cfg.PoolFlags)
	if err != nil {
		a.stats.Allocs--
		a.rep.Report(diag.Event{Kind: diag.OutOfMemory, Tier: "heap", Op: "alloc", Size: size, Err: err})
		return mem.Nil, ErrNoSpace
	}
	_ = a.pa.SetTag(p, largeTag)
	a.stats.LargeAllocs++
	return p, nil
}

// isLarge reports whether ptr is a live allocation this tier delegated to
// the pool.
func (a *Allocator) isLarge(ptr mem.Ptr) bool {
	tag, err := a.pa.Tag(ptr)
	return err == nil && tag == largeTag
}
