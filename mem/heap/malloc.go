package heap

import (
	"math/bits"

	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/pool"
)

// The conventional four-operation surface. Failures return mem.Nil; the
// reason goes to the diag.Reporter. A small request that no heap can hold
// falls back to the pool tier, so it fails only when the pool is exhausted.

// Malloc allocates size bytes.
func (a *Allocator) Malloc(size int) mem.Ptr {
	p, _ := a.alloc(size, true)
	return p
}

// Calloc allocates count*size zeroed bytes.
func (a *Allocator) Calloc(count, size int) mem.Ptr {
	if count < 0 || size < 0 {
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "heap", Op: "calloc", Size: size, Err: ErrOverflow})
		return mem.Nil
	}
	hi, n := bits.Mul64(uint64(count), uint64(size))
	if hi != 0 || n > uint64(len(a.mem)) {
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "heap", Op: "calloc", Size: size, Err: ErrOverflow})
		return mem.Nil
	}
	p, err := a.alloc(int(n), true)
	if err != nil {
		return mem.Nil
	}
	format.Clear(a.mem, int(p), int(n))
	return p
}

// Realloc resizes ptr to size bytes, preserving min(old, new) bytes.
//
// Heap blocks are never resized in place: a different block size means
// allocate+copy+release. A shrink whose replacement cannot be allocated keeps
// the original pointer, so shrinking never fails. Large allocations use the
// pool tier's in-place resize, or migrate into a heap when they drop below
// the cutoff.
func (a *Allocator) Realloc(ptr mem.Ptr, size int) mem.Ptr {
	if ptr == mem.Nil {
		return a.Malloc(size)
	}
	if size <= 0 {
		a.Free(ptr)
		return mem.Nil
	}

	if _, b, err := a.locate(ptr); err == nil {
		have := a.bsize(b)
		if blockSizeFor(size) == have {
			return ptr
		}
		return a.move(ptr, have-blockHeader, size, true)
	}

	if !a.isLarge(ptr) {
		a.rep.Report(diag.Event{Kind: diag.InvalidRequest, Tier: "heap", Op: "realloc", Ptr: uint32(ptr), Size: size, Err: ErrBadPtr})
		return mem.Nil
	}
	if size < a.cfg.LargeCutoff {
		old, _ := a.pa.Size(ptr)
		if q := a.move(ptr, old, size, false); q != mem.Nil {
			return q
		}
	}
	q, err := a.pa.Resize(ptr, size)
	if err != nil {
		return mem.Nil
	}
	return q
}

// move reallocates into a fresh allocation. old is the number of payload
// bytes worth preserving.
func (a *Allocator) move(ptr mem.Ptr, old, size int, spill bool) mem.Ptr {
	q, err := a.alloc(size, spill)
	if err != nil {
		if size < old && !a.isLarge(ptr) {
			a.stats.ShrinkKept++
			return ptr
		}
		return mem.Nil
	}
	copy(a.mem[int(q):int(q)+min(old, size)], a.mem[int(ptr):])
	_ = a.Release(ptr)
	return q
}

// Free releases ptr. Unknown pointers are reported and ignored.
func (a *Allocator) Free(ptr mem.Ptr) {
	_ = a.Release(ptr)
}

// Owns reports whether ptr is a live block inside one of this tier's heaps.
// Large allocations delegated to the pool are not included; see OwnsLarge.
func (a *Allocator) Owns(ptr mem.Ptr) bool {
	_, _, err := a.locate(ptr)
	return err == nil
}

// OwnsLarge reports whether ptr is a live large allocation made by this tier.
func (a *Allocator) OwnsLarge(ptr mem.Ptr) bool { return a.isLarge(ptr) }

// Pool returns the pool tier beneath this heap tier.
func (a *Allocator) Pool() *pool.Allocator { return a.pa }

// UsableSize returns the payload bytes available at ptr.
func (a *Allocator) UsableSize(ptr mem.Ptr) int {
	if _, b, err := a.locate(ptr); err == nil {
		return a.bsize(b) - blockHeader
	}
	if a.isLarge(ptr) {
		n, _ := a.pa.UsableSize(ptr)
		return n
	}
	return 0
}

// Bytes returns the n bytes at ptr.
func (a *Allocator) Bytes(ptr mem.Ptr, n int) []byte {
	return a.pa.Bytes(ptr, n)
}

// Stats returns a snapshot of the tier.
func (a *Allocator) Stats() Stats {
	st := a.stats
	st.Heaps, st.HeapBytes, st.FreeBytes, st.FreeBlocks, st.UsedBlocks = 0, 0, 0, 0, 0
	for h := a.first; h != nil; h = h.next {
		st.Heaps++
		st.HeapBytes += h.size
		st.FreeBytes += h.free
		st.FreeBlocks += h.freeBlocks
		st.UsedBlocks += h.used
	}
	return st
}

// Heaps returns the number of live heaps.
func (a *Allocator) Heaps() int {
	n := 0
	for h := a.first; h != nil; h = h.next {
		n++
	}
	return n
}
