package slot

import (
	"fmt"
	"math/bits"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/addrmap"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/heap"
)

// array is one run of equal-size slots carved from a single heap allocation.
type array struct {
	id     int32
	base   int
	class  int
	size   int // slot size
	used   int
	cursor int      // lowest free slot, or capacity when full
	free   []uint64 // bit set = slot free

	prev, next *array // address order within the class
	dead       bool
}

func (r *array) end(capacity int) int { return r.base + r.size*capacity }

// Allocator serves a narrow band of tiny sizes from bitmap slot arrays and
// forwards everything else to the heap tier.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Allocator struct {
	h   *heap.Allocator
	idx *addrmap.Map
	cfg Config
	rep *diag.Reporter

	arrays []*array // by id; nil entries are reusable
	freeID []int32

	lists []*array // per class, address order
	// firstWithSpace[c] is the lowest-address class-c array with a free slot.
	firstWithSpace []*array

	stats Stats
}

// New builds a slot tier drawing its arrays from h. idx must cover the
// backing range with buckets no larger than the smallest array.
func New(h *heap.Allocator, idx *addrmap.Map, cfg Config) (*Allocator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if idx.BucketSize() > cfg.MinSpan() {
		return nil, fmt.Errorf("%w: index bucket %d exceeds smallest array span %d",
			ErrBadConfig, idx.BucketSize(), cfg.MinSpan())
	}
	classes := (cfg.Max-cfg.Min)/cfg.Step + 1
	return &Allocator{
		h:              h,
		idx:            idx,
		cfg:            cfg,
		rep:            cfg.Reporter,
		lists:          make([]*array, classes),
		firstWithSpace: make([]*array, classes),
	}, nil
}

// InBand reports whether size is served by slot arrays.
func (a *Allocator) InBand(size int) bool {
	return size >= a.cfg.Min && size <= a.cfg.Max
}

func (a *Allocator) classOf(size int) int {
	return (size - a.cfg.Min + a.cfg.Step - 1) / a.cfg.Step
}

func (a *Allocator) slotSize(class int) int { return a.cfg.Min + class*a.cfg.Step }

// Alloc returns a slot for in-band sizes and forwards the rest to the heap
// tier unchanged.
func (a *Allocator) Alloc(size int) mem.Ptr {
	if !a.InBand(size) {
		a.stats.PassedThrough++
		return a.h.Malloc(size)
	}
	c := a.classOf(size)
	r := a.firstWithSpace[c]
	if r == nil {
		if r = a.newArray(c); r == nil {
			return mem.Nil
		}
	}

	i := r.cursor
	r.free[i/64] &^= 1 << (i % 64)
	r.used++
	r.cursor = a.nextFree(r, i+1)
	if r.cursor == a.cfg.Capacity {
		a.firstWithSpace[c] = a.nextWithSpace(r.next)
	}
	a.stats.Allocs++
	p := r.base + i*r.size
	logger.Alloc("slot alloc", "class", c, "size", size, "array", r.id, "slot", i, "ptr", p)
	return mem.Ptr(p)
}

// nextFree returns the lowest free slot at or after i, or capacity.
func (a *Allocator) nextFree(r *array, i int) int {
	for w := i / 64; w < len(r.free); w++ {
		word := r.free[w]
		if w == i/64 {
			word &= ^uint64(0) << (i % 64)
		}
		if word != 0 {
			return w*64 + bits.TrailingZeros64(word)
		}
	}
	return a.cfg.Capacity
}

// nextWithSpace walks the class list from r to the first array with a free slot.
func (a *Allocator) nextWithSpace(r *array) *array {
	for ; r != nil; r = r.next {
		if r.used < a.cfg.Capacity {
			return r
		}
	}
	return nil
}

// Free releases p. Pointers outside every array belong to the heap tier.
func (a *Allocator) Free(p mem.Ptr) {
	if p == mem.Nil {
		return
	}
	r := a.owner(p)
	if r == nil {
		a.h.Free(p)
		return
	}
	i, err := a.slotIndex(r, p)
	if err != nil {
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "slot", Op: "free", Ptr: uint32(p), Err: err})
		return
	}

	wasFull := r.used == a.cfg.Capacity
	r.free[i/64] |= 1 << (i % 64)
	r.used--
	r.cursor = min(r.cursor, i)
	a.stats.Frees++
	logger.Alloc("slot free", "class", r.class, "array", r.id, "slot", i, "ptr", uint32(p))

	if r.used == 0 {
		a.destroy(r)
		return
	}
	if f := a.firstWithSpace[r.class]; wasFull && (f == nil || r.base < f.base) {
		a.firstWithSpace[r.class] = r
	}
}

// owner returns the live array containing p, or nil.
func (a *Allocator) owner(p mem.Ptr) *array {
	for _, id := range a.idx.Lookup(p) {
		if id == addrmap.None {
			continue
		}
		r := a.arrays[id]
		if r != nil && int(p) >= r.base && int(p) < r.end(a.cfg.Capacity) {
			return r
		}
	}
	return nil
}

// slotIndex validates p as a live slot of r.
func (a *Allocator) slotIndex(r *array, p mem.Ptr) (int, error) {
	off := int(p) - r.base
	if off%r.size != 0 {
		return 0, fmt.Errorf("%w: 0x%X is inside slot %d", ErrBadPtr, p, off/r.size)
	}
	i := off / r.size
	if r.free[i/64]&(1<<(i%64)) != 0 {
		return 0, fmt.Errorf("%w: slot %d of array %d is already free", ErrBadPtr, i, r.id)
	}
	return i, nil
}

// Owns reports whether p is a live slot.
func (a *Allocator) Owns(p mem.Ptr) bool {
	r := a.owner(p)
	if r == nil {
		return false
	}
	_, err := a.slotIndex(r, p)
	return err == nil
}

// SlotSize returns the slot size behind p, or 0 if p is not a slot.
func (a *Allocator) SlotSize(p mem.Ptr) int {
	if r := a.owner(p); r != nil {
		return r.size
	}
	return 0
}

func (a *Allocator) newArray(c int) *array {
	size := a.slotSize(c)
	p, err := a.h.Alloc(size * a.cfg.Capacity)
	if err != nil {
		a.rep.Report(diag.Event{Kind: diag.OutOfMemory, Tier: "slot", Op: "alloc", Size: size, Err: ErrNoSpace})
		return nil
	}

	r := &array{base: int(p), class: c, size: size, free: make([]uint64, a.cfg.Capacity/64)}
	for i := range r.free {
		r.free[i] = ^uint64(0)
	}
	if n := len(a.freeID); n > 0 {
		r.id = a.freeID[n-1]
		a.freeID = a.freeID[:n-1]
		a.arrays[r.id] = r
	} else {
		r.id = int32(len(a.arrays))
		a.arrays = append(a.arrays, r)
	}
	if err := a.idx.Insert(p, mem.Ptr(r.end(a.cfg.Capacity)), r.id); err != nil {
		a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "slot", Op: "alloc", Ptr: uint32(p), Err: err})
		a.arrays[r.id] = nil
		a.freeID = append(a.freeID, r.id)
		a.h.Free(p)
		return nil
	}

	var prev *array
	for g := a.lists[c]; g != nil && g.base < r.base; g = g.next {
		prev = g
	}
	r.prev = prev
	if prev == nil {
		r.next = a.lists[c]
		a.lists[c] = r
	} else {
		r.next = prev.next
		prev.next = r
	}
	if r.next != nil {
		r.next.prev = r
	}
	if f := a.firstWithSpace[c]; f == nil || r.base < f.base {
		a.firstWithSpace[c] = r
	}

	a.stats.ArraysCreated++
	logger.Alloc("slot array created", "class", c, "slot", size, "array", r.id, "base", r.base)
	return r
}

// destroy returns an array to the heap tier. Destroying it twice is a no-op.
func (a *Allocator) destroy(r *array) {
	if r.dead {
		return
	}
	c := r.class
	if a.firstWithSpace[c] == r {
		a.firstWithSpace[c] = a.nextWithSpace(r.next)
	}
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		a.lists[c] = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	}
	r.prev, r.next = nil, nil
	r.dead = true

	a.idx.Remove(mem.Ptr(r.base), mem.Ptr(r.end(a.cfg.Capacity)), r.id)
	a.arrays[r.id] = nil
	a.freeID = append(a.freeID, r.id)
	a.stats.ArraysReleased++
	logger.Alloc("slot array released", "class", c, "array", r.id, "base", r.base)
	a.h.Free(mem.Ptr(r.base))
}

// Arrays returns the number of live arrays.
func (a *Allocator) Arrays() int {
	n := 0
	for _, r := range a.arrays {
		if r != nil {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the tier.
func (a *Allocator) Stats() Stats {
	st := a.stats
	st.Arrays, st.Slots, st.Used = 0, 0, 0
	for _, r := range a.arrays {
		if r != nil {
			st.Arrays++
			st.Slots += a.cfg.Capacity
			st.Used += r.used
		}
	}
	return st
}

// Heap returns the tier this allocator draws arrays from and forwards to.
func (a *Allocator) Heap() *heap.Allocator { return a.h }
