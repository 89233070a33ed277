// Package heap implements the segregated-fit tier of memkit.
//
// Heaps are pool regions carved into 8-byte aligned blocks. Each block has an
// 8-byte header holding its size, a free bit, a previous-free bit, a magic
// word and the index of its heap, so releasing a pointer finds its heap
// without searching. Free blocks carry a footer so the next block can reach
// them for backward coalescing.
//
// Free blocks sit on per-size-class lists within each heap. For every class
// the allocator remembers the lowest-address heap with a free block of that
// class; allocation tries the request's class and then each larger class,
// which favours low addresses and keeps high heaps emptying out. A heap whose
// last block is released goes straight back to the pool tier.
//
// Requests at or above Config.LargeCutoff bypass the heaps and are served by
// the pool tier directly.
//
// Basic usage:
//
//	pa, _ := pool.New(backing, pool.Config{Sizes: []int{1 << 20}})
//	h, _ := heap.New(pa, heap.Config{PoolFlags: pool.Top})
//	p := h.Malloc(100)
//	p = h.Realloc(p, 300)
//	h.Free(p)
package heap
