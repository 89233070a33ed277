package slot

import (
	"github.com/joshuapare/memkit/mem"
)

// Realloc resizes p from oldSize to newSize bytes. The caller supplies
// oldSize, as the pluggable-allocator convention does.
//
// A resize within the same slot class returns p. Any other resize of a slot
// is allocate+copy+release; a shrink whose replacement cannot be allocated
// keeps p. Pointers that are not slots are resized by the heap tier, moving
// into a slot when the new size is in band. Plain pool allocations that no
// upper tier has tagged are resized by the pool tier.
func (a *Allocator) Realloc(p mem.Ptr, oldSize, newSize int) mem.Ptr {
	if p == mem.Nil {
		return a.Alloc(newSize)
	}
	if newSize <= 0 {
		a.Free(p)
		return mem.Nil
	}
	if oldSize == newSize {
		return p
	}

	r := a.owner(p)
	if r == nil {
		heapOwned := a.h.Owns(p) || a.h.OwnsLarge(p)
		if pa := a.h.Pool(); !heapOwned {
			if tag, err := pa.Tag(p); err == nil && tag == 0 {
				a.stats.PassedThrough++
				q, err := pa.Resize(p, newSize)
				if err != nil {
					return mem.Nil
				}
				return q
			}
		}
		if !a.InBand(newSize) || !heapOwned {
			a.stats.PassedThrough++
			return a.h.Realloc(p, newSize)
		}
		q := a.Alloc(newSize)
		if q == mem.Nil {
			return a.h.Realloc(p, newSize)
		}
		a.copy(q, p, min(oldSize, newSize, a.h.UsableSize(p)))
		a.h.Free(p)
		return q
	}

	if a.InBand(newSize) && a.classOf(newSize) == r.class {
		return p
	}
	q := a.Alloc(newSize)
	if q == mem.Nil {
		if newSize < oldSize {
			a.stats.ShrinkKept++
			return p
		}
		return mem.Nil
	}
	a.copy(q, p, min(oldSize, newSize, r.size))
	a.Free(p)
	return q
}

func (a *Allocator) copy(dst, src mem.Ptr, n int) {
	if n <= 0 {
		return
	}
	copy(a.h.Bytes(dst, n), a.h.Bytes(src, n))
}

// Hook is the single pluggable-allocator entry point: newSize 0 releases p,
// a nil p allocates, anything else resizes. ud is the caller's opaque user
// data and is not used.
func (a *Allocator) Hook(ud any, p mem.Ptr, oldSize, newSize int) mem.Ptr {
	switch {
	case newSize == 0:
		a.Free(p)
		return mem.Nil
	case p == mem.Nil:
		return a.Alloc(newSize)
	default:
		return a.Realloc(p, oldSize, newSize)
	}
}
