// Package pool implements the coarse-grained tier of memkit: arbitrary-size,
// arbitrary-alignment regions carved from one or two fixed pools.
//
// # Overview
//
// Each pool is tiled by regions. Every region starts with a 32-byte in-line
// header (magic, flags, pool id, size in blocks, explicit prev/next links and,
// depending on state, the requested size/alignment or free-list links). A
// zero-size fence region, always allocated, sits in the last block of every
// pool so forward walks and coalescing stop without bounds checks.
//
// Free regions form a doubly linked list in address order. The pool keeps
// pointers to both ends so that:
//
//   - Bottom allocations scan upward from the lowest free region and carve
//     from a region's low end
//   - Top allocations scan downward from the highest free region and carve
//     from a region's high end
//
// Keeping long-lived traffic at one end and transient traffic at the other
// stops the two from fragmenting each other.
//
// # Usage Example
//
//	pa, err := pool.New(backing, pool.Config{Granularity: 64, Sizes: []int{1 << 20}})
//	if err != nil {
//	    return err
//	}
//
//	p, err := pa.Allocate(4096, 64, pool.Top|pool.PoolID(0)|pool.Clear)
//	if err != nil {
//	    return err // pool.ErrNoSpace: nothing was changed
//	}
//	defer pa.Release(p)
//
// # Release
//
// Release flags the region free and merges it with a free successor and, via
// the back link, a free predecessor. Insertion into the free list is O(1) at
// either end; an interior insertion walks the region chain (not the free list)
// to the next free region.
//
// # Resize
//
// Resize shrinks in place, grows in place when the following (and if needed
// the preceding) region is free, and otherwise moves the payload.
package pool
